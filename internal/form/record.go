// internal/form/record.go
//
// Lessonforms – Forms subsystem: submission records.
//
// Context
//   A Record is the flattened template-parameter map handed to the delivery
//   collaborator.  It is built once per accepted submit from State, passed by
//   value, and discarded afterwards.  Builders live with the component that
//   owns the form; this file holds the shared type and helpers.
//
//------------------------------------------------------------------------------

package form

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Record maps template-parameter name → value.
type Record map[string]string

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordBuilder assembles a Record from validated state.  now is the
// controller's clock so date fields are reproducible in tests.
type RecordBuilder func(st *State, now time.Time) Record

// strict removes every tag; shared because bluemonday policies are safe for
// concurrent use once built.
var strict = bluemonday.StrictPolicy()

// PlainText strips markup from free-text input.  It backs the plain_text
// field option and runs before validation, so the validator judges the
// value that is delivered.  Entities produced by the sanitizer are decoded
// again so apostrophes and ampersands survive intact.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// OrDefault returns def when s is blank.
func OrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// YesNo renders a checkbox flag the way the email templates expect.
func YesNo(on bool) string {
	if on {
		return "Yes"
	}
	return "No"
}
