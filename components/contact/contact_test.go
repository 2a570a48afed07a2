package contact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/yanizio/lessonforms/internal/component"
	"github.com/yanizio/lessonforms/internal/config"
	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/message"
)

func TestBuilder(t *testing.T) {
	st := form.NewState()
	st.Set("name", "Jo Ann")
	st.Set("email", "jo@example.com")
	st.Set("phone", "+15551234567")
	st.Set("subject", "Trial <b>lesson</b>")
	st.Set("message", "Is x<y and z>w true for Tom & Jerry's kids?")

	got := Builder("office@example.com")(st, time.Now())
	want := form.Record{
		"from_name":  "Jo Ann",
		"from_email": "jo@example.com",
		"phone":      "+15551234567",
		"subject":    "Trial <b>lesson</b>",
		"message":    "Is x<y and z>w true for Tom & Jerry's kids?",
		"to_email":   "office@example.com",
		"reply_to":   "jo@example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddedDefinition(t *testing.T) {
	fd, err := form.LoadFormDefFS(formsFS, "forms/contact.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if fd.Pending != "Sending Message..." || fd.Failure != "Failed to send message. Please try again later." {
		t.Fatalf("labels = %q / %q", fd.Pending, fd.Failure)
	}
	rs, err := fd.Rules()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"name", "email", "phone", "subject", "message"}, rs.Names()); diff != "" {
		t.Fatalf("rule order (-want +got):\n%s", diff)
	}
}

// captureSender records the last payload.
type captureSender struct {
	template string
	params   map[string]string
}

func (c *captureSender) Send(_ context.Context, _, tpl string, p map[string]string) (message.Response, error) {
	c.template, c.params = tpl, p
	return message.Response{Status: http.StatusOK}, nil
}

func TestRoutesSubmit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Delivery.ServiceID = "svc"
	cfg.Forms.Recipient = "office@example.com"
	cfg.Forms.Templates.Contact = "t_contact"
	cfg.Forms.ContactRevert = 5 * time.Second

	s := &captureSender{}
	r := chi.NewRouter()
	if err := component.Mount(r, &component.Deps{Settings: cfg, Delivery: s, Registry: form.NewRegistry()}); err != nil {
		t.Fatalf("mount: %v", err)
	}

	v := url.Values{
		"name": {"Jo Ann"}, "email": {"jo@example.com"}, "phone": {"+15551234567"},
		"subject": {"Lessons"}, "message": {"I would like a trial lesson."},
	}
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"revert_after_ms":5000`) {
		t.Fatalf("contact should revert after 5s: %s", rec.Body)
	}
	if s.template != "t_contact" || s.params["from_name"] != "Jo Ann" {
		t.Fatalf("sent %q %v", s.template, s.params)
	}
}

func TestRoutesSubmitSendsValidatedValuesVerbatim(t *testing.T) {
	cfg := &config.Config{}
	cfg.Forms.Recipient = "office@example.com"
	cfg.Forms.Templates.Contact = "t_contact"

	s := &captureSender{}
	r := chi.NewRouter()
	if err := component.Mount(r, &component.Deps{Settings: cfg, Delivery: s, Registry: form.NewRegistry()}); err != nil {
		t.Fatalf("mount: %v", err)
	}

	v := url.Values{
		"name": {"Jo Ann"}, "email": {"jo@example.com"}, "phone": {"+15551234567"},
		"subject": {"<b></b><i></i>"}, "message": {"<script>alert('hello world')</script>"},
	}
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if s.params["subject"] != "<b></b><i></i>" || s.params["message"] != "<script>alert('hello world')</script>" {
		t.Fatalf("record rewritten after validation: subject=%q message=%q", s.params["subject"], s.params["message"])
	}
}
