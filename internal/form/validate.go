// internal/form/validate.go
//
// Lessonforms – Forms subsystem: Field Validator.
//
// Context
//   Every field of a form carries a FieldRule: required, minimum length, and
//   an optional regex.  Validate maps (field, raw value) to a Result with a
//   user-facing message.  Radio groups and checkboxes are not text inputs, so
//   Check reads their selection or checked flag from State instead.
//
// Workflow
//   •  Unknown field → valid.
//   •  Required and blank → “<Field> is required”.
//   •  Blank optional → valid, later rules skipped.
//   •  Too short → “<Field> must be at least N characters”.
//   •  Pattern mismatch → the rule’s PatternMessage, else “Invalid <field>
//      format”.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// -----------------------------------------------------------------------------
// Rules
// -----------------------------------------------------------------------------

// Kind selects how a field's value is read.
type Kind int

const (
	KindText    Kind = iota // free text, select, textarea
	KindChoice              // radio group: valid when an option is selected
	KindConsent             // checkbox: valid when checked
)

// FieldRule is the immutable rule for one field.
type FieldRule struct {
	Name           string
	Kind           Kind
	Required       bool
	MinLength      int
	Pattern        *regexp.Regexp
	PatternMessage string
	Message        string // choice/consent failure wording
	PlainText      bool   // markup is stripped before the value is judged
}

// RuleSet is an ordered set of rules keyed by field name.  Copies share the
// underlying maps, which are never written after NewRuleSet returns.
type RuleSet struct {
	order []string
	rules map[string]FieldRule
}

// NewRuleSet builds a RuleSet preserving argument order.
func NewRuleSet(rules ...FieldRule) (RuleSet, error) {
	rs := RuleSet{
		order: make([]string, 0, len(rules)),
		rules: make(map[string]FieldRule, len(rules)),
	}
	for _, r := range rules {
		if r.Name == "" {
			return RuleSet{}, fmt.Errorf("rule set: unnamed rule")
		}
		if _, dup := rs.rules[r.Name]; dup {
			return RuleSet{}, fmt.Errorf("rule set: duplicate rule %q", r.Name)
		}
		rs.order = append(rs.order, r.Name)
		rs.rules[r.Name] = r
	}
	return rs, nil
}

// Names returns field names in declaration order.
func (rs RuleSet) Names() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Rule returns the rule for name.
func (rs RuleSet) Rule(name string) (FieldRule, bool) {
	r, ok := rs.rules[name]
	return r, ok
}

// Len reports the number of rules.
func (rs RuleSet) Len() int { return len(rs.order) }

// -----------------------------------------------------------------------------
// Results and errors
// -----------------------------------------------------------------------------

// Result is the verdict for one field.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

var pass = Result{Valid: true}

func fail(msg string) Result { return Result{Message: msg} }

// ErrorField describes a single validation failure so the view can render a
// field-level message.
type ErrorField struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// validationError wraps []ErrorField and satisfies the error interface.
type validationError struct{ Fields []ErrorField }

func (ve validationError) Error() string { return "form validation failed" }

// -----------------------------------------------------------------------------
// Validator
// -----------------------------------------------------------------------------

// Validator evaluates values against a RuleSet.  It holds no mutable state
// and is safe for concurrent use.
type Validator struct{ rules RuleSet }

// NewValidator returns a Validator for rs.
func NewValidator(rs RuleSet) *Validator { return &Validator{rules: rs} }

// Rules exposes the underlying RuleSet.
func (v *Validator) Rules() RuleSet { return v.rules }

// Normalize returns raw as it will be validated and delivered.  Fields
// marked PlainText lose their markup; every other value passes through
// untouched.
func (v *Validator) Normalize(field, raw string) string {
	if r, ok := v.rules.Rule(field); ok && r.PlainText {
		return PlainText(raw)
	}
	return raw
}

// Validate checks raw against the rule for field.  For choice fields raw is
// the selected option; for consent fields any value other than "", "false",
// "off", or "0" counts as checked.
func (v *Validator) Validate(field, raw string) Result {
	r, ok := v.rules.Rule(field)
	if !ok {
		return pass
	}

	switch r.Kind {
	case KindChoice:
		return presence(r, strings.TrimSpace(raw) != "")
	case KindConsent:
		return presence(r, truthy(raw))
	}

	blank := strings.TrimSpace(raw) == ""
	if r.Required && blank {
		return fail(capitalize(field) + " is required")
	}
	if blank {
		return pass
	}

	if r.MinLength > 0 && utf8.RuneCountInString(raw) < r.MinLength {
		return fail(fmt.Sprintf("%s must be at least %d characters", capitalize(field), r.MinLength))
	}

	if r.Pattern != nil && !r.Pattern.MatchString(raw) {
		if r.PatternMessage != "" {
			return fail(r.PatternMessage)
		}
		return fail(fmt.Sprintf("Invalid %s format", field))
	}

	return pass
}

// Check validates field using the value held in st, reading the checked flag
// for consent fields.
func (v *Validator) Check(field string, st *State) Result {
	r, ok := v.rules.Rule(field)
	if !ok {
		return pass
	}
	if r.Kind == KindConsent {
		return presence(r, st.Checked(field))
	}
	return v.Validate(field, st.Value(field))
}

// CheckAll validates every declared field in order and returns the failures.
func (v *Validator) CheckAll(st *State) []ErrorField {
	var errs []ErrorField
	for _, name := range v.rules.order {
		if res := v.Check(name, st); !res.Valid {
			errs = append(errs, ErrorField{Name: name, Message: res.Message})
		}
	}
	return errs
}

// presence handles choice and consent fields, which are either satisfied or
// not.  Optional ones always pass.
func presence(r FieldRule, satisfied bool) Result {
	if !r.Required || satisfied {
		return pass
	}
	if r.Message != "" {
		return fail(r.Message)
	}
	return fail(capitalize(r.Name) + " is required")
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "off", "0":
		return false
	}
	return true
}

// capitalize upper-cases the first rune: “firstName” → “FirstName”.
func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
