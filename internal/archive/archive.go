// internal/archive/archive.go
//
// Submission archive.
//
// Context
// -------
// When `archive.dsn` is configured every accepted submission is also written
// to the `form_submission` table.  The row is a copy for operators: the
// delivered parameter record as JSON, plus the request fingerprint (UA, bot
// flag, and country).  Writing runs as a post-delivery hook, so a database
// outage never costs the visitor their submission or shows them an error.
//
// Schema
// ------
//
//	CREATE TABLE form_submission (
//	  id         CHAR(36)     NOT NULL PRIMARY KEY,
//	  form_id    VARCHAR(64)  NOT NULL,
//	  data       JSON         NOT NULL,
//	  user_agent VARCHAR(512) NOT NULL DEFAULT '',
//	  is_bot     TINYINT(1)   NOT NULL DEFAULT 0,
//	  country    CHAR(2)      NOT NULL DEFAULT '',
//	  created_at DATETIME     NOT NULL,
//	  KEY idx_form_created (form_id, created_at)
//	);
//
// Notes
// -----
//   Oxford commas, two spaces after periods.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/requestinfo"
)

// Meta is the request fingerprint stored with a submission.
type Meta struct {
	UserAgent string
	IsBot     bool
	Country   string
}

// MetaFrom reads Meta from the request context populated by
// requestinfo.Enrich.  Missing info yields the zero Meta.
func MetaFrom(r *http.Request) Meta {
	info := requestinfo.FromContext(r.Context())
	if info == nil {
		return Meta{UserAgent: r.UserAgent()}
	}
	return Meta{
		UserAgent: info.UA.Raw,
		IsBot:     info.UA.IsBot,
		Country:   info.Geo.CountryISO,
	}
}

// Entry is one archived row.
type Entry struct {
	ID        string    `db:"id"`
	FormID    string    `db:"form_id"`
	Data      []byte    `db:"data"`
	UserAgent string    `db:"user_agent"`
	IsBot     bool      `db:"is_bot"`
	Country   string    `db:"country"`
	CreatedAt time.Time `db:"created_at"`
}

// Record decodes Data.
func (e Entry) Record() (form.Record, error) {
	var rec form.Record
	err := json.Unmarshal(e.Data, &rec)
	return rec, err
}

// Store writes submissions through sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const insertSQL = `INSERT INTO form_submission
	(id, form_id, data, user_agent, is_bot, country, created_at)
	VALUES (:id, :form_id, :data, :user_agent, :is_bot, :country, :created_at)`

// Save stores rec under formID and returns the new row id.
func (s *Store) Save(ctx context.Context, formID string, rec form.Record, m Meta) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("archive: encode %s: %w", formID, err)
	}
	e := Entry{
		ID:        uuid.NewString(),
		FormID:    formID,
		Data:      data,
		UserAgent: truncate(m.UserAgent, 512),
		IsBot:     m.IsBot,
		Country:   m.Country,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, insertSQL, e); err != nil {
		return "", fmt.Errorf("archive: insert %s: %w", formID, err)
	}
	return e.ID, nil
}

// Recent returns the latest n submissions for formID, newest first.
func (s *Store) Recent(ctx context.Context, formID string, n int) ([]Entry, error) {
	var out []Entry
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, form_id, data, user_agent, is_bot, country, created_at
		   FROM form_submission
		  WHERE form_id = ?
		  ORDER BY created_at DESC
		  LIMIT ?`, formID, n)
	if err != nil {
		return nil, fmt.Errorf("archive: recent %s: %w", formID, err)
	}
	return out, nil
}

// Hook returns a post-delivery hook that archives the record with r's
// metadata.  The request context may be cancelled once the response is
// written, so the hook detaches from it.
func (s *Store) Hook(formID string, r *http.Request) form.Hook {
	m := MetaFrom(r)
	return form.Hook{
		Name: "archive",
		Run: func(ctx context.Context, rec form.Record) error {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_, err := s.Save(ctx, formID, rec, m)
			return err
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
