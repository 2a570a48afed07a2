// internal/form/csrf.go
//
// Lessonforms – Forms subsystem: stateless submission guard.
//
// Context
//   Rendered forms embed a hidden `csrf_token`.  On POST the HTTP adapter
//   asks the Guard to confirm that the token is authentic and that the form
//   was not filled in faster than a person could.  Fill time is measured
//   from the signed issue time inside the token, so a client cannot backdate
//   it.  The token is stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(secret, nonce+unixMicro) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  HMAC – keyed with the configured secret.
//
//   No server-side sessions are required, so multiple instances share tokens
//   as long as they share the secret.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

const (
	tokenBytes = 16 + 8 + sha256.Size // nonce + ts + sig
	formAge    = 30 * time.Minute
	clockSkew  = time.Minute
)

// Guard failures.  The HTTP adapter maps them to 403 / 400.
var (
	ErrBadToken = errors.New("security token invalid.  Please refresh and try again")
	ErrTooFast  = errors.New("form submitted too quickly.  Please enter the fields manually")
	ErrExpired  = errors.New("form expired.  Please reload and submit again")
)

// Guard issues and verifies submission tokens.
type Guard struct {
	secret  []byte
	minFill time.Duration
	now     func() time.Time
}

// NewGuard returns a Guard keyed by secret.  A secret shorter than 32 bytes
// is replaced with a random one, which invalidates tokens on restart.
func NewGuard(secret []byte, minFill time.Duration) *Guard {
	if len(secret) < 32 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &Guard{secret: secret, minFill: minFill, now: time.Now}
}

// Token creates a new token.  Call once per form render.
func (g *Guard) Token() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(g.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, g.sign(nonce, ts)...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerifyToken reports whether tok is authentic and still within the form
// age.
func (g *Guard) VerifyToken(tok string) bool {
	err := g.Check(tok)
	return err == nil || errors.Is(err, ErrTooFast)
}

// Check verifies the token posted with a form and the time it took to fill
// the form in, measured from the token's signed issue time.
func (g *Guard) Check(token string) error {
	issued, ok := g.issued(token)
	if !ok {
		return ErrBadToken
	}
	delta := g.now().Sub(issued)
	switch {
	case delta < -clockSkew:
		return ErrBadToken
	case delta < g.minFill:
		return ErrTooFast
	case delta > formAge:
		return ErrExpired
	}
	return nil
}

// issued returns the signed issue time of an authentic token.
func (g *Guard) issued(tok string) (time.Time, bool) {
	if tok == "" {
		return time.Time{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return time.Time{}, false
	}
	nonce, tsBytes, sig := raw[:16], raw[16:24], raw[24:]
	if !hmac.Equal(sig, g.sign(nonce, tsBytes)) {
		return time.Time{}, false
	}
	return time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes))), true
}

func (g *Guard) sign(nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}
