// internal/form/submit_test.go
//
// HTTP adapter tests.
//
// Each sub-test fires an httptest request at an Endpoint and asserts the
// status code and the JSON effects body.  The Guard runs with a fixed clock
// so timing checks are deterministic.

package form

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newEndpoint(t *testing.T, s *fakeSender, g *Guard, hooks func(*http.Request) []Hook) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(mustDef(t, contactYAML), EndpointConfig{
		Controller: Options{
			ServiceID:  "svc",
			TemplateID: "tpl",
			Build:      contactBuilder,
			Sender:     s,
		},
		Guard:         g,
		NotifyTimeout: time.Minute,
		RequestHooks:  hooks,
	})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	return ep
}

func contactValues() url.Values {
	return url.Values{
		"name":    {"Jo Ann"},
		"email":   {"jo@example.com"},
		"phone":   {"+15551234567"},
		"subject": {"Lessons"},
		"message": {"I would like to book a trial."},
	}
}

func postForm(h http.HandlerFunc, v url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeEffects(t *testing.T, rec *httptest.ResponseRecorder) EffectsSnapshot {
	t.Helper()
	var snap EffectsSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return snap
}

func TestEndpointSubmitStatuses(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		s := &fakeSender{status: 200}
		rec := postForm(newEndpoint(t, s, nil, nil).Submit, contactValues())
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		snap := decodeEffects(t, rec)
		if !snap.Success || snap.Progress != 100 || snap.Submit.Disabled {
			t.Fatalf("effects = %+v", snap)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		v := contactValues()
		v.Set("phone", "abc")
		s := &fakeSender{status: 200}
		rec := postForm(newEndpoint(t, s, nil, nil).Submit, v)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		snap := decodeEffects(t, rec)
		if snap.Errors["phone"] != "Please enter a valid phone number" || snap.ScrollTo != "phone" {
			t.Fatalf("effects = %+v", snap)
		}
		if s.calls.Load() != 0 {
			t.Fatal("no delivery on invalid input")
		}
		if snap.Progress != 100 {
			t.Fatalf("progress = %d (phone is non-blank)", snap.Progress)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		rec := postForm(newEndpoint(t, &fakeSender{status: 400}, nil, nil).Submit, contactValues())
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d", rec.Code)
		}
		snap := decodeEffects(t, rec)
		if len(snap.Notifications) != 1 || snap.Notifications[0].Kind != "error" {
			t.Fatalf("notifications = %+v", snap.Notifications)
		}
	})
}

func TestEndpointSubmitJSONBody(t *testing.T) {
	ep, err := NewEndpoint(mustDef(t, choiceYAML), EndpointConfig{
		Controller: Options{Build: contactBuilder, Sender: &fakeSender{status: 200}},
	})
	if err != nil {
		t.Fatal(err)
	}
	body := `{"firstName":"Amina","sessionFrequency":"Daily","terms":true}`
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	ep.Submit(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	body = `{"firstName":"Amina","sessionFrequency":"Daily","terms":false}`
	req = httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	ep.Submit(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unchecked terms: status = %d", rec.Code)
	}
	if snap := decodeEffects(t, rec); snap.Errors["terms"] != "You must agree to the terms and conditions" {
		t.Fatalf("effects = %+v", snap)
	}
}

func TestEndpointGuard(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := fixedGuard(now)
	ep := newEndpoint(t, &fakeSender{status: 200}, g, nil)

	v := contactValues()
	if rec := postForm(ep.Submit, v); rec.Code != http.StatusForbidden {
		t.Fatalf("missing token: %d", rec.Code)
	}

	// A backdated client timestamp does not make a fresh token old enough.
	v.Set("csrf_token", tokenAt(t, g, now, now))
	v.Set("render_ts", strconv.FormatInt(now.Add(-time.Hour).UnixMicro(), 10))
	if rec := postForm(ep.Submit, v); rec.Code != http.StatusBadRequest {
		t.Fatalf("too fast: %d", rec.Code)
	}

	v.Set("csrf_token", tokenAt(t, g, now.Add(-10*time.Second), now))
	if rec := postForm(ep.Submit, v); rec.Code != http.StatusOK {
		t.Fatalf("valid: %d", rec.Code)
	}
}

func TestEndpointRequestHooks(t *testing.T) {
	var seen string
	hooks := func(r *http.Request) []Hook {
		ua := r.UserAgent()
		return []Hook{{Name: "ua", Run: func(context.Context, Record) error { seen = ua; return nil }}}
	}
	ep := newEndpoint(t, &fakeSender{status: 200}, nil, hooks)

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(contactValues().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "test-agent")
	ep.Submit(httptest.NewRecorder(), req)
	if seen != "test-agent" {
		t.Fatalf("request hook saw %q", seen)
	}
}

func TestEndpointValidate(t *testing.T) {
	ep := newEndpoint(t, &fakeSender{}, nil, nil)

	rec := postForm(ep.Validate, url.Values{"field": {"subject"}, "value": {"Hey"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res Result
	_ = json.NewDecoder(rec.Body).Decode(&res)
	if res.Valid || res.Message != "Subject must be at least 5 characters" {
		t.Fatalf("result = %+v", res)
	}

	if rec := postForm(ep.Validate, url.Values{"field": {"nope"}}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown field: %d", rec.Code)
	}
}

func TestEndpointRender(t *testing.T) {
	g := NewGuard(nil, 0)
	ep := newEndpoint(t, &fakeSender{}, g, nil)
	rec := httptest.NewRecorder()
	ep.Render(rec, httptest.NewRequest(http.MethodGet, "/contact", nil))

	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("status %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<form id="contactForm"`) || !strings.Contains(body, `name="csrf_token"`) {
		t.Fatalf("markup:\n%s", body)
	}
}

func TestEndpointValidatesWhatItSends(t *testing.T) {
	s := &fakeSender{status: 200}
	build := func(st *State, _ time.Time) Record {
		return Record{"notes": st.Value("notes"), "message": st.Value("message")}
	}
	ep, err := NewEndpoint(mustDef(t, notesYAML), EndpointConfig{
		Controller: Options{Build: build, Sender: s},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := postForm(ep.Submit, url.Values{"notes": {"<b></b><i></i>"}, "message": {"long enough text"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("markup-only notes: status = %d", rec.Code)
	}
	if snap := decodeEffects(t, rec); snap.Errors["notes"] != "Notes is required" {
		t.Fatalf("effects = %+v", snap)
	}
	if s.calls.Load() != 0 {
		t.Fatal("nothing should be sent")
	}

	script := "<script>alert('hello world')</script>"
	rec = postForm(ep.Submit, url.Values{"notes": {"<p>Hello there</p>"}, "message": {script}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if got := s.sent[0]; got["notes"] != "Hello there" || got["message"] != script {
		t.Fatalf("sent = %v", got)
	}

	rec = postForm(ep.Validate, url.Values{"field": {"notes"}, "value": {"<i></i>"}})
	var res Result
	_ = json.NewDecoder(rec.Body).Decode(&res)
	if res.Valid || res.Message != "Notes is required" {
		t.Fatalf("blur validation = %+v", res)
	}
}
