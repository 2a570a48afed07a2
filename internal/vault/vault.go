// internal/vault/vault.go
//
// Vault client wrapper for secret references in configuration.
//
// Context
// -------
//   - Configuration values may read `vault:<mount>/<path>#<key>` instead of a
//     literal.  The config loader hands such values to Resolve, which fetches
//     the key from a KV-v2 secret and caches it.
//   - The EmailJS private key and the archive DSN password are the usual
//     candidates.  Secrets never land in YAML or git history.
//   - A background loop keeps the token renewed until the ctx handed to New
//     ends.  The config loader scopes that ctx to secret resolution.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, zap.S())             // during boot, lazily.
//  2. v,   err := vault.Resolve(ctx, cli, raw, ttl)    // per config value.
//
// Notes
// -----
//   Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Prefix marks a configuration value as a secret reference.
const Prefix = "vault:"

// ErrBadRef is returned for references without a path or key.
var ErrBadRef = errors.New("vault: reference must look like vault:<mount>/<path>#<key>")

//
// SECTION 1.  Public façade
//

// KV reads one key of a KV-v2 secret.  *Client satisfies it; tests supply a
// map-backed fake.
type KV interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
	sfg     singleflight.Group

	done chan struct{} // closed when the renewal loop exits
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client from VAULT_ADDR / VAULT_TOKEN and starts a
// background token-renewal loop bound to ctx.  Cancel ctx once the client is
// no longer needed.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.S()
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		log:   log.With("component", "vault"),
		cache: make(map[string]cached),
		done:  make(chan struct{}),
	}
	go c.renewLoop(ctx)
	return c, nil
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result is
// cached for that duration.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", ErrBadRef
	}
	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		cv, ok := c.cache[canonical]
		c.cacheMu.RUnlock()
		if ok && time.Now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	// Concurrent misses for the same key share one Vault round-trip.
	v, err, _ := c.sfg.Do(canonical, func() (any, error) {
		return c.fetch(ctx, secretPath, key)
	})
	if err != nil {
		return "", err
	}
	sval := v.(string)

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	return sval, nil
}

func (c *Client) fetch(ctx context.Context, secretPath, key string) (string, error) {
	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}
	return sval, nil
}

//
// SECTION 2.  Reference resolution
//

// IsRef reports whether v is a secret reference.
func IsRef(v string) bool { return strings.HasPrefix(v, Prefix) }

// ParseRef splits "vault:secret/lessonforms/emailjs#private_key" into
// ("secret/lessonforms/emailjs", "private_key").
func ParseRef(v string) (path, key string, err error) {
	if !IsRef(v) {
		return "", "", ErrBadRef
	}
	path, key, ok := strings.Cut(strings.TrimPrefix(v, Prefix), "#")
	if !ok || path == "" || key == "" || !strings.Contains(path, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadRef, v)
	}
	return path, key, nil
}

// Resolve returns v unchanged unless it is a secret reference, in which case
// the referenced value is fetched through kv.
func Resolve(ctx context.Context, kv KV, v string, ttl time.Duration) (string, error) {
	if !IsRef(v) {
		return v, nil
	}
	path, key, err := ParseRef(v)
	if err != nil {
		return "", err
	}
	if kv == nil {
		return "", fmt.Errorf("vault: %s#%s referenced but no client configured", path, key)
	}
	return kv.GetKV(ctx, path, key, ttl)
}

//
// SECTION 3.  Background token renewal
//

// Done is closed once the renewal loop has stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) renewLoop(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			c.log.Warnw("token renew self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("token is not renewable, sleeping 1h")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
		})
		if err != nil {
			c.log.Warnw("lifetime watcher init", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

// watch blocks until the watcher finishes or ctx ends.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	go w.Start()
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 4.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
