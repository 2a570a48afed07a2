// internal/form/controller.go
//
// Lessonforms – Forms subsystem: Form Controller.
//
// Context
//   A Controller owns one form instance: its State, its rules, and the timers
//   it starts.  It turns blur, input, and change events into error-state
//   updates on a View, and runs the submit workflow:
//
//      Idle → Validating → Idle            (any field invalid)
//                        → Submitting → Success
//                                     → Idle (delivery rejected, notified)
//
//   The disabled submit control is the only mutual exclusion: while a
//   delivery call is in flight a second Submit returns ErrSubmitInProgress.
//   The controller lock is released across the call so field events keep
//   flowing, matching how a page stays interactive while the send resolves.
//
// Workflow
//   •  Blur    – validate, show or clear the error.
//   •  Input   – only when the field is in error: clear once valid.
//   •  Select / Toggle – radio and checkbox changes clear their error once
//      satisfied.
//   •  Submit  – validate all fields, scroll to the first failure or send the
//      record built from State; always restore the submit control.
//
// Notes
//   View and Notifier methods run with the controller lock held and must not
//   call back into the Controller.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/lessonforms/internal/message"
	"github.com/yanizio/lessonforms/internal/metrics"
	"github.com/yanizio/lessonforms/internal/notify"
)

// DefaultRevertAfter is how long the contact success panel stays up.
const DefaultRevertAfter = 5 * time.Second

// -----------------------------------------------------------------------------
// Ports
// -----------------------------------------------------------------------------

// View is the presentation layer a Controller drives.
type View interface {
	FieldError(field, message string)
	FieldValid(field string)
	ScrollTo(field string)
	SubmitPending(label string) // disable control, show pending label
	SubmitReady(label string)   // enable control, restore label
	ShowSuccess(revertAfter time.Duration)
	ShowForm()
}

// Notifier shows transient messages.  *notify.Presenter satisfies it.
type Notifier interface {
	Show(message string, kind notify.Kind) *notify.Handle
}

// Hook runs after a delivery was accepted.  Failures are logged and never
// reach the user.
type Hook struct {
	Name string
	Run  func(ctx context.Context, rec Record) error
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrSubmitInProgress is returned while the submit control is disabled.
	ErrSubmitInProgress = errors.New("form: submit already in progress")
	// ErrFormHidden is returned while the success panel replaces the form.
	ErrFormHidden = errors.New("form: success panel is showing")
)

// DeliveryError reports a rejected or failed delivery call.
type DeliveryError struct {
	Form   string
	Status int // 0 when the call itself failed
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("form %s: delivery rejected with status %d", e.Form, e.Status)
	}
	return fmt.Sprintf("form %s: delivery failed: %v", e.Form, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidationError reports whether err came from failed field validation.
func IsValidationError(err error) bool {
	var ve validationError
	return errors.As(err, &ve)
}

// FieldErrors extracts the failing fields from a validation error.
func FieldErrors(err error) []ErrorField {
	var ve validationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// -----------------------------------------------------------------------------
// Controller
// -----------------------------------------------------------------------------

// Phase is the controller's position in the submit state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseSuccess
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	default:
		return "idle"
	}
}

// Options wires a Controller.  Form, Build, Sender, and View are required.
type Options struct {
	Form       *FormDef
	ServiceID  string
	TemplateID string
	Build      RecordBuilder

	// RevertAfter > 0 swaps the success panel back to an empty form after
	// the delay.  Zero leaves the panel showing.
	RevertAfter time.Duration
	Hooks       []Hook

	Sender   message.Sender
	View     View
	Notifier Notifier
	State    *State // optional; a fresh State when nil
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

// Controller coordinates validation, submission, and result presentation
// for one form instance.
type Controller struct {
	def       *FormDef
	validator *Validator
	service   string
	template  string
	build     RecordBuilder
	revertIn  time.Duration
	hooks     []Hook
	sender    message.Sender
	view      View
	notifier  Notifier
	log       *zap.SugaredLogger
	now       func() time.Time

	mu         sync.Mutex
	state      *State
	phase      Phase
	submitting bool // the disabled flag on the submit control
	revert     *time.Timer
}

// NewController validates o and returns an idle Controller.
func NewController(o Options) (*Controller, error) {
	switch {
	case o.Form == nil:
		return nil, errors.New("form controller: Form is required")
	case o.Build == nil:
		return nil, fmt.Errorf("form controller %s: Build is required", o.Form.ID)
	case o.Sender == nil:
		return nil, fmt.Errorf("form controller %s: Sender is required", o.Form.ID)
	case o.View == nil:
		return nil, fmt.Errorf("form controller %s: View is required", o.Form.ID)
	}

	rules, err := o.Form.Rules()
	if err != nil {
		return nil, err
	}
	if o.State == nil {
		o.State = NewState()
	}
	if o.Log == nil {
		o.Log = zap.S()
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	c := &Controller{
		def:       o.Form,
		validator: NewValidator(rules),
		service:   o.ServiceID,
		template:  o.TemplateID,
		build:     o.Build,
		revertIn:  o.RevertAfter,
		hooks:     o.Hooks,
		sender:    o.Sender,
		view:      o.View,
		notifier:  o.Notifier,
		log:       o.Log.With("form", o.Form.ID),
		now:       o.Now,
		state:     o.State,
	}
	c.view.SubmitReady(c.def.Submit)
	return c, nil
}

// Phase returns the current state-machine phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Submitting reports whether the submit control is disabled.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Validator exposes the controller's validator.
func (c *Controller) Validator() *Validator { return c.validator }

// Progress reports the share of required fields currently filled.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Progress(c.validator.Rules())
}

// Close stops a pending success-panel revert.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
}

// -----------------------------------------------------------------------------
// Field events
// -----------------------------------------------------------------------------

// Blur records value and shows or clears the field's error.
func (c *Controller) Blur(field, value string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(field, value)
	res := c.validator.Check(field, c.state)
	c.applyLocked(field, res)
	return res
}

// Input records value and, when the field is in error, clears the error as
// soon as the value becomes valid.  It never introduces a new error.
func (c *Controller) Input(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(field, value)
	if !c.state.HasError(field) {
		return
	}
	if c.validator.Check(field, c.state).Valid {
		c.clearLocked(field)
	}
}

// Select records the chosen radio option and clears the group's error.
func (c *Controller) Select(field, option string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Set(field, option)
	if c.state.HasError(field) && c.validator.Check(field, c.state).Valid {
		c.clearLocked(field)
	}
}

// Toggle records a checkbox flag.  Checking it clears the field's error.
func (c *Controller) Toggle(field string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetChecked(field, on)
	if on && c.state.HasError(field) && c.validator.Check(field, c.state).Valid {
		c.clearLocked(field)
	}
}

// setLocked records a value from a blur or input event.  Consent fields keep
// a checked flag rather than a value.
func (c *Controller) setLocked(field, value string) {
	if r, ok := c.validator.Rules().Rule(field); ok && r.Kind == KindConsent {
		c.state.SetChecked(field, truthy(value))
		return
	}
	c.state.Set(field, c.validator.Normalize(field, value))
}

func (c *Controller) applyLocked(field string, res Result) {
	if res.Valid {
		c.clearLocked(field)
		return
	}
	c.state.setError(field, res.Message)
	c.view.FieldError(field, res.Message)
}

// clearLocked removes a shown error.  Fields without one are left alone, so
// re-validating a valid field has no effect on the view.
func (c *Controller) clearLocked(field string) {
	if !c.state.HasError(field) {
		return
	}
	c.state.clearError(field)
	c.view.FieldValid(field)
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

// Submit validates every field and, when all pass, delivers the record.
//
// It returns a validation error (see IsValidationError) when fields fail,
// *DeliveryError when the collaborator rejects the message, and
// ErrSubmitInProgress while a previous submit is still in flight.
func (c *Controller) Submit(ctx context.Context) error {
	rec, err := c.beginSubmit()
	if err != nil {
		return err
	}
	defer c.endSubmit()

	resp, err := c.sender.Send(ctx, c.service, c.template, rec.Clone())
	if err == nil && !resp.OK() {
		err = &DeliveryError{Form: c.def.ID, Status: resp.Status, Err: fmt.Errorf("status %d: %s", resp.Status, resp.Text)}
	}
	if err != nil {
		var derr *DeliveryError
		if !errors.As(err, &derr) {
			derr = &DeliveryError{Form: c.def.ID, Err: err}
		}
		c.log.Errorw("delivery failed", "status", derr.Status, "err", derr.Err)
		metrics.Submissions.WithLabelValues(c.def.ID, "failed").Inc()
		if c.notifier != nil {
			c.notifier.Show(c.def.Failure, notify.Error)
		}
		return derr
	}

	metrics.Submissions.WithLabelValues(c.def.ID, "delivered").Inc()
	c.log.Infow("delivery accepted", "template", c.template)
	c.succeed()
	c.runHooks(ctx, rec)
	return nil
}

// beginSubmit runs the Validating phase and, on success, disables the submit
// control and builds the record.
func (c *Controller) beginSubmit() (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.submitting:
		metrics.Submissions.WithLabelValues(c.def.ID, "busy").Inc()
		return nil, ErrSubmitInProgress
	case c.phase == PhaseSuccess:
		return nil, ErrFormHidden
	}

	c.phase = PhaseValidating
	for _, name := range c.validator.Rules().Names() {
		c.clearLocked(name)
	}

	failed := c.validator.CheckAll(c.state)
	if len(failed) > 0 {
		for _, f := range failed {
			c.state.setError(f.Name, f.Message)
			c.view.FieldError(f.Name, f.Message)
			metrics.FieldErrors.WithLabelValues(c.def.ID, f.Name).Inc()
		}
		c.view.ScrollTo(failed[0].Name)
		c.phase = PhaseIdle
		metrics.Submissions.WithLabelValues(c.def.ID, "invalid").Inc()
		return nil, validationError{Fields: failed}
	}

	c.submitting = true
	c.phase = PhaseSubmitting
	c.view.SubmitPending(c.def.Pending)
	return c.build(c.state, c.now()), nil
}

// endSubmit re-enables the submit control on every exit path.
func (c *Controller) endSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitting = false
	if c.phase == PhaseSubmitting {
		c.phase = PhaseIdle
	}
	c.view.SubmitReady(c.def.Submit)
}

func (c *Controller) succeed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = PhaseSuccess
	c.view.ShowSuccess(c.revertIn)
	if c.revertIn > 0 {
		if c.revert != nil {
			c.revert.Stop()
		}
		c.revert = time.AfterFunc(c.revertIn, c.revertToForm)
	}
}

func (c *Controller) revertToForm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.revert = nil
	if c.phase != PhaseSuccess {
		return
	}
	c.state.Reset()
	c.phase = PhaseIdle
	c.view.ShowForm()
}

func (c *Controller) runHooks(ctx context.Context, rec Record) {
	for _, h := range c.hooks {
		if err := h.Run(ctx, rec.Clone()); err != nil {
			metrics.HookFailures.Inc()
			c.log.Warnw("post-delivery hook failed", "hook", h.Name, "err", err)
		}
	}
}
