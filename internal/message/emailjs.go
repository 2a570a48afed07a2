// internal/message/emailjs.go
//
// EmailJS REST client.
//
// Context
// -------
// The site's forms deliver through EmailJS.  The browser widget's
// `init(publicKey)` + `send(service, template, params)` pair maps to
// NewClient (once, at boot) and Client.Send.  Send POSTs
//
//	{ "service_id", "template_id", "user_id", "template_params", "accessToken" }
//
// to the send endpoint and returns the HTTP status plus body text.  There is
// no retry; a rejected call is surfaced once and the form recovers.
//
// Notes
// -----
// • The HTTP client timeout is the only bound on a call besides ctx.
// • Oxford commas, two spaces after periods.
package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the public EmailJS send API.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// Options configures a Client.
type Options struct {
	PublicKey  string        // account public key (“user_id”)
	PrivateKey string        // optional access token for server-side calls
	Endpoint   string        // defaults to DefaultEndpoint
	Timeout    time.Duration // defaults to 10s
	HTTPClient *http.Client  // overrides Timeout when set
}

// Client talks to the EmailJS API.  Safe for concurrent use.
type Client struct {
	publicKey  string
	privateKey string
	endpoint   string
	http       *http.Client
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.PublicKey) == "" {
		return nil, errors.New("emailjs: public key is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		publicKey:  opts.PublicKey,
		privateKey: opts.PrivateKey,
		endpoint:   opts.Endpoint,
		http:       hc,
	}, nil
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
	AccessToken    string            `json:"accessToken,omitempty"`
}

// Send implements Sender.  A transport failure returns an error; an HTTP
// response of any status returns a nil error and the status for the caller
// to judge.
func (c *Client) Send(ctx context.Context, serviceID, templateID string, params map[string]string) (Response, error) {
	body, err := json.Marshal(sendRequest{
		ServiceID:      serviceID,
		TemplateID:     templateID,
		UserID:         c.publicKey,
		TemplateParams: params,
		AccessToken:    c.privateKey,
	})
	if err != nil {
		return Response{}, fmt.Errorf("emailjs: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("emailjs: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("emailjs: send: %w", err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return Response{Status: resp.StatusCode, Text: strings.TrimSpace(string(text))}, nil
}
