// internal/archive/archive_test.go
//
// Unit-tests for the archive store using sqlmock.
//
// Run: go test ./internal/archive -v

package archive

import (
	"context"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/requestinfo"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(sqlx.NewDb(db, "mysql"))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestSave(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO form_submission")).
		WithArgs(sqlmock.AnyArg(), "contact", []byte(`{"from_name":"Jo"}`),
			"curl/8", true, "US", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Save(context.Background(), "contact",
		form.Record{"from_name": "Jo"}, Meta{UserAgent: "curl/8", IsBot: true, Country: "US"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("id = %q, want uuid", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestRecent(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, form_id, data")).
		WithArgs("registration", 10).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "form_id", "data", "user_agent", "is_bot", "country", "created_at"}).
			AddRow("a-b", "registration", []byte(`{"firstName":"Amina"}`), "ua", false, "GB", created))

	got, err := s.Recent(context.Background(), "registration", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Country != "GB" {
		t.Fatalf("rows = %+v", got)
	}
	rec, err := got[0].Record()
	if err != nil || rec["firstName"] != "Amina" {
		t.Fatalf("record = %v, %v", rec, err)
	}
}

func TestHookUsesRequestInfo(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO form_submission")).
		WithArgs(sqlmock.AnyArg(), "contact", sqlmock.AnyArg(), "Mozilla/5.0", false, "FR", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest("POST", "/contact", nil)
	req = req.WithContext(requestinfo.WithInfo(req.Context(), &requestinfo.RequestInfo{
		UA:  requestinfo.UA{Raw: "Mozilla/5.0"},
		Geo: requestinfo.Geo{CountryISO: "FR"},
	}))

	h := s.Hook("contact", req)
	if h.Name != "archive" {
		t.Fatalf("hook name = %q", h.Name)
	}
	if err := h.Run(context.Background(), form.Record{"k": "v"}); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestMetaFromWithoutEnrich(t *testing.T) {
	req := httptest.NewRequest("POST", "/contact", nil)
	req.Header.Set("User-Agent", "plain")
	if m := MetaFrom(req); m.UserAgent != "plain" || m.Country != "" {
		t.Fatalf("meta = %+v", m)
	}
}
