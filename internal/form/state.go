// internal/form/state.go
//
// Explicit form-state record.  The presentation layer writes user input into
// State and reads error state back out; validation never queries the UI.

package form

import (
	"math"
	"strings"
)

// State holds current field values, checkbox flags, and the error message
// each field is displaying.  It is not safe for concurrent use on its own;
// Controller serialises access.
type State struct {
	values  map[string]string
	checked map[string]bool
	errors  map[string]string
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		values:  make(map[string]string),
		checked: make(map[string]bool),
		errors:  make(map[string]string),
	}
}

// Set stores the text value (or selected radio option) for field.
func (s *State) Set(field, value string) { s.values[field] = value }

// Value returns the stored value, "" when unset.
func (s *State) Value(field string) string { return s.values[field] }

// SetChecked stores a checkbox flag.
func (s *State) SetChecked(field string, on bool) { s.checked[field] = on }

// Checked reports a checkbox flag.
func (s *State) Checked(field string) bool { return s.checked[field] }

// Error returns the message field is displaying.
func (s *State) Error(field string) (string, bool) {
	msg, ok := s.errors[field]
	return msg, ok
}

// HasError reports whether field is in error state.
func (s *State) HasError(field string) bool {
	_, ok := s.errors[field]
	return ok
}

// Errors returns a copy of the error map.
func (s *State) Errors() map[string]string {
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

func (s *State) setError(field, msg string) { s.errors[field] = msg }
func (s *State) clearError(field string)    { delete(s.errors, field) }

// Reset clears values, flags, and errors, as a browser form reset would.
func (s *State) Reset() {
	clear(s.values)
	clear(s.checked)
	clear(s.errors)
}

// Progress returns the rounded percentage of required fields that are
// filled: text non-blank, choice selected, consent checked.  A rule set
// without required fields reports 100.
func (s *State) Progress(rs RuleSet) int {
	var required, filled int
	for _, name := range rs.order {
		r := rs.rules[name]
		if !r.Required {
			continue
		}
		required++
		switch r.Kind {
		case KindConsent:
			if s.Checked(name) {
				filled++
			}
		default:
			if strings.TrimSpace(s.Value(name)) != "" {
				filled++
			}
		}
	}
	if required == 0 {
		return 100
	}
	return int(math.Round(float64(filled) / float64(required) * 100))
}
