// internal/message/message.go
//
// Lessonforms – Delivery collaborator contract.
//
// Context
//   Forms hand their flattened template parameters to an email-delivery
//   service.  The service exposes two logical operations: init with a public
//   key (once per process, see NewClient) and Send(service, template, params)
//   which either accepts the message (status 200) or rejects it.  Callers
//   treat anything other than a nil error and status 200 as a rejection.
//
//   LogSender is the dry-run stand-in used when no public key is configured.
//   It logs the payload and accepts it so local development works offline.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// Response is the collaborator's verdict.
type Response struct {
	Status int    // HTTP-style status; 200 means accepted
	Text   string // raw body, diagnostics only
}

// OK reports whether the message was accepted.
func (r Response) OK() bool { return r.Status == http.StatusOK }

// Sender delivers one templated message.
type Sender interface {
	Send(ctx context.Context, serviceID, templateID string, params map[string]string) (Response, error)
}

// LogSender logs every payload and reports success.
type LogSender struct{ Log *zap.SugaredLogger }

// Send implements Sender.
func (s LogSender) Send(_ context.Context, serviceID, templateID string, params map[string]string) (Response, error) {
	log := s.Log
	if log == nil {
		log = zap.S()
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.Infow("dry-run delivery",
		"service", serviceID,
		"template", templateID,
		"params", keys,
		"to", params["to_email"],
	)
	return Response{Status: http.StatusOK, Text: "OK"}, nil
}
