// internal/form/submit.go
//
// Lessonforms – Forms subsystem: HTTP adapter.
//
// Context
//   The Controller is written against View and notify.Mount ports.  Over
//   HTTP those ports are satisfied by an Effects recorder: each request gets a
//   fresh State (parsed from the body), a fresh Controller, and an Effects
//   value that collects everything the page must do (mark fields, scroll,
//   restore the submit control, show the success panel, show a notice).  The
//   recorded effects are written back as JSON for the site script to apply.
//
// Workflow
//   •  Render   – GET  /<form>          → form markup with a fresh Guard token.
//   •  Validate – POST /<form>/validate → one field, the blur check.
//   •  Submit   – POST /<form>          → Guard, Controller.Submit, effects.
//
//   Status mapping:  200 delivered, 422 validation, 409 busy, 502 delivery,
//   403 bad token, 400 timing.
//
// Notes
//   Bodies may be form-encoded or JSON.  JSON booleans are accepted for
//   checkboxes.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yanizio/lessonforms/internal/logger"
	"github.com/yanizio/lessonforms/internal/notify"
)

const maxBody = 64 << 10

// -----------------------------------------------------------------------------
// Effects recorder
// -----------------------------------------------------------------------------

// SubmitControl is the state of the submit button.
type SubmitControl struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// EffectsSnapshot is the JSON body returned to the page.
type EffectsSnapshot struct {
	Errors        map[string]string     `json:"errors"`
	Cleared       []string              `json:"cleared,omitempty"`
	ScrollTo      string                `json:"scroll_to,omitempty"`
	Submit        SubmitControl         `json:"submit"`
	Success       bool                  `json:"success"`
	RevertAfterMS int64                 `json:"revert_after_ms,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
	Progress      int                   `json:"progress"`
}

// Effects implements View and notify.Mount by recording calls.  Notification
// removals may arrive from timer goroutines, hence the lock.
type Effects struct {
	mu   sync.Mutex
	snap EffectsSnapshot
}

// NewEffects returns an empty recorder.
func NewEffects() *Effects {
	return &Effects{snap: EffectsSnapshot{
		Errors:        map[string]string{},
		Notifications: []notify.Notification{},
	}}
}

func (e *Effects) FieldError(field, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Errors[field] = message
}

func (e *Effects) FieldValid(field string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.snap.Errors, field)
	e.snap.Cleared = append(e.snap.Cleared, field)
}

func (e *Effects) ScrollTo(field string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.ScrollTo = field
}

func (e *Effects) SubmitPending(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Submit = SubmitControl{Label: label, Disabled: true}
}

func (e *Effects) SubmitReady(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Submit = SubmitControl{Label: label}
}

func (e *Effects) ShowSuccess(revertAfter time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Success = true
	e.snap.RevertAfterMS = revertAfter.Milliseconds()
}

func (e *Effects) ShowForm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Success = false
}

// Append records a shown notification.
func (e *Effects) Append(n notify.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Notifications = append(e.snap.Notifications, n)
}

// Remove marks a notification as no longer visible.
func (e *Effects) Remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.snap.Notifications {
		if e.snap.Notifications[i].ID == id {
			e.snap.Notifications[i].Visible = false
		}
	}
}

// Snapshot returns a copy of the recorded effects.
func (e *Effects) Snapshot() EffectsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.snap
	out.Errors = make(map[string]string, len(e.snap.Errors))
	for k, v := range e.snap.Errors {
		out.Errors[k] = v
	}
	out.Cleared = append([]string(nil), e.snap.Cleared...)
	out.Notifications = append([]notify.Notification{}, e.snap.Notifications...)
	return out
}

// -----------------------------------------------------------------------------
// Endpoint
// -----------------------------------------------------------------------------

// EndpointConfig wires an Endpoint.  Controller carries everything except
// Form, View, Notifier, State, and Log, which are set per request.
type EndpointConfig struct {
	Controller    Options
	Guard         *Guard // nil disables token and timing checks
	NotifyTimeout time.Duration

	// RequestHooks adds hooks that need the request, e.g. archive metadata.
	RequestHooks func(r *http.Request) []Hook
}

// Endpoint serves one form over HTTP.
type Endpoint struct {
	def       *FormDef
	validator *Validator
	cfg       EndpointConfig
}

// NewEndpoint compiles def's rules and returns an Endpoint.
func NewEndpoint(def *FormDef, cfg EndpointConfig) (*Endpoint, error) {
	if def == nil {
		return nil, errors.New("form endpoint: nil form definition")
	}
	rules, err := def.Rules()
	if err != nil {
		return nil, err
	}
	return &Endpoint{def: def, validator: NewValidator(rules), cfg: cfg}, nil
}

// Def returns the served definition.
func (e *Endpoint) Def() *FormDef { return e.def }

// Render writes the form markup.
func (e *Endpoint) Render(w http.ResponseWriter, r *http.Request) {
	var tok string
	if e.cfg.Guard != nil {
		var err error
		if tok, err = e.cfg.Guard.Token(); err != nil {
			logger.FromContext(r.Context()).Errorw("form token", "form", e.def.ID, "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	markup, err := RenderForm(e.def, RenderOptions{Token: tok})
	if err != nil {
		logger.FromContext(r.Context()).Errorw("form render", "form", e.def.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(markup))
}

// Validate checks a single field, the blur path.  The body carries `field`
// and `value`.
func (e *Endpoint) Validate(w http.ResponseWriter, r *http.Request) {
	vals, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	field := vals["field"]
	if _, ok := e.validator.Rules().Rule(field); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown field %q", field)})
		return
	}
	writeJSON(w, http.StatusOK, e.validator.Validate(field, e.validator.Normalize(field, vals["value"])))
}

// Submit runs the full submit workflow for one request.
func (e *Endpoint) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context()).With("form", e.def.ID)

	vals, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if g := e.cfg.Guard; g != nil {
		if err := g.Check(vals["csrf_token"]); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrBadToken) {
				status = http.StatusForbidden
			}
			log.Infow("submission guard rejected", "err", err)
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
	}

	fx := NewEffects()
	opts := e.cfg.Controller
	opts.Form = e.def
	opts.View = fx
	opts.Notifier = notify.NewPresenter(fx, e.cfg.NotifyTimeout)
	opts.State = e.stateFrom(vals)
	opts.Log = log
	if e.cfg.RequestHooks != nil {
		opts.Hooks = append(append([]Hook(nil), opts.Hooks...), e.cfg.RequestHooks(r)...)
	}

	ctrl, err := NewController(opts)
	if err != nil {
		log.Errorw("form controller", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer ctrl.Close()

	err = ctrl.Submit(r.Context())
	status := http.StatusOK
	var derr *DeliveryError
	switch {
	case err == nil:
	case IsValidationError(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrSubmitInProgress), errors.Is(err, ErrFormHidden):
		status = http.StatusConflict
	case errors.As(err, &derr):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	snap := fx.Snapshot()
	snap.Progress = ctrl.Progress()
	writeJSON(w, status, snap)
}

// stateFrom builds a State from request values.  Consent fields read the
// checked flag; everything else is a plain value.
func (e *Endpoint) stateFrom(vals map[string]string) *State {
	st := NewState()
	rules := e.validator.Rules()
	for _, name := range rules.Names() {
		r, _ := rules.Rule(name)
		v, ok := vals[name]
		if r.Kind == KindConsent {
			st.SetChecked(name, ok && truthy(v))
			continue
		}
		st.Set(name, e.validator.Normalize(name, v))
	}
	// Undeclared optional fields (e.g. specialRequests) still reach builders.
	for k, v := range vals {
		if _, declared := rules.Rule(k); !declared {
			st.Set(k, v)
		}
	}
	return st
}

// -----------------------------------------------------------------------------
// Body parsing
// -----------------------------------------------------------------------------

// readBody flattens a form-encoded or JSON object body into strings.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				out[k] = t
			case bool:
				out[k] = strconv.FormatBool(t)
			case float64:
				out[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case nil:
			default:
				return nil, fmt.Errorf("field %q: unsupported JSON value", k)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
