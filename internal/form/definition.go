// internal/form/definition.go
//
// Lessonforms – Forms subsystem: YAML definition loader.
//
// Context
//   Each site form is declared in a YAML file.  The file names the form, its
//   submit labels, the generic failure notice, and every field together with
//   the rule the Field Validator enforces.  Components embed their default
//   definitions; operators may drop replacements under
//   “<override_dir>/components/<comp>/forms/”.  A Registry keeps the parsed
//   FormDef values so the renderer, controller, and HTTP adapter all read the
//   same source of truth.
//
// Workflow
//   •  Structs mirror the YAML schema: FormDef → SectionDef → FieldDef.
//   •  LoadFormDef / LoadFormDefFS parse one file and validate structure.
//   •  Registry.LoadDir walks an override tree and replaces matching IDs.
//   •  FormDef.Rules compiles the immutable RuleSet handed to controllers.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
//
// A form is defined EITHER by a flat Fields list OR by Sections.  Sections
// only affect rendering; validation order is the flattened field order.
type FormDef struct {
	ID       string       `yaml:"id"`       // Stable element key, e.g. “contact”.
	Title    string       `yaml:"title"`    // Display title, optional.
	Submit   string       `yaml:"submit"`   // Idle label of the submit control.
	Pending  string       `yaml:"pending"`  // Label while a delivery call is in flight.
	Failure  string       `yaml:"failure"`  // Generic notice on delivery failure.
	Success  string       `yaml:"success"`  // Success panel text, optional.
	Fields   []FieldDef   `yaml:"fields"`   // Flat list of fields.
	Sections []SectionDef `yaml:"sections"` // Grouped fields.  Mutually exclusive with Fields.
}

// FieldDef describes a single input control and its validation rule.
type FieldDef struct {
	Name         string   `yaml:"name"`          // Submission key.  Required.
	Label        string   `yaml:"label"`         // Human-readable label.  Required.
	Type         string   `yaml:"type"`          // text, email, tel, textarea, select, radio, checkbox.
	Placeholder  string   `yaml:"placeholder"`   // Optional placeholder text.
	Required     bool     `yaml:"required"`      // True if input is mandatory.
	MinLength    int      `yaml:"minlength"`     // ≥ 0, 0 means unset.
	Pattern      string   `yaml:"pattern"`       // Regex pattern string.
	PatternError string   `yaml:"pattern_error"` // Message when Pattern does not match.
	Options      []string `yaml:"options"`       // For select/radio.
	ErrorMsg     string   `yaml:"error"`         // Radio/checkbox failure wording.
	PlainText    bool     `yaml:"plain_text"`    // Strip markup before validation.
}

// SectionDef groups fields under a heading.
type SectionDef struct {
	ID     string     `yaml:"id"`
	Title  string     `yaml:"title"`
	Fields []FieldDef `yaml:"fields"`
}

// Flatten returns all FieldDefs regardless of section structure.
func (fd *FormDef) Flatten() []FieldDef {
	if len(fd.Sections) == 0 {
		return fd.Fields
	}
	var out []FieldDef
	for _, s := range fd.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

// Field returns the definition for name.
func (fd *FormDef) Field(name string) (FieldDef, bool) {
	for _, f := range fd.Flatten() {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Rules compiles the field list into a RuleSet.  Patterns were checked at
// load time, so an error here means the FormDef was built by hand.
func (fd *FormDef) Rules() (RuleSet, error) {
	fields := fd.Flatten()
	rules := make([]FieldRule, 0, len(fields))
	for _, f := range fields {
		r := FieldRule{
			Name:           f.Name,
			Kind:           kindOf(f.Type),
			Required:       f.Required,
			MinLength:      f.MinLength,
			PatternMessage: f.PatternError,
			Message:        f.ErrorMsg,
			PlainText:      f.PlainText,
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return RuleSet{}, fmt.Errorf("form %s: field %q: %w", fd.ID, f.Name, err)
			}
			r.Pattern = re
		}
		rules = append(rules, r)
	}
	return NewRuleSet(rules...)
}

func kindOf(typ string) Kind {
	switch typ {
	case "radio":
		return KindChoice
	case "checkbox":
		return KindConsent
	default:
		return KindText
	}
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps form ID → *FormDef.  The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*FormDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*FormDef)}
}

// Get returns a parsed FormDef by ID.  The boolean is false when unknown.
func (r *Registry) Get(id string) (*FormDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fd, ok := r.forms[id]
	return fd, ok
}

// Register inserts or replaces fd.  Caller must ensure fd passed validation.
func (r *Registry) Register(fd *FormDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[fd.ID] = fd
}

// LoadDir walks “<base>/components/*/forms/*.yaml” and registers every file,
// replacing built-in definitions with the same ID.  A missing tree is not an
// error.
func (r *Registry) LoadDir(base string) (int, error) {
	if base == "" {
		return 0, nil
	}
	root := filepath.Join(base, "components")
	var n int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "forms" {
			return nil
		}
		fd, err := LoadFormDef(path)
		if err != nil {
			return err // fail fast so issues surface loudly.
		}
		r.Register(fd)
		n++
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return n, err
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML file from disk.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return parseFormDef(raw, path)
}

// LoadFormDefFS parses one YAML file from fsys.  Components use it with their
// embedded definitions.
func LoadFormDefFS(fsys fs.FS, path string) (*FormDef, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return parseFormDef(raw, path)
}

// MustLoadFS is LoadFormDefFS for package-level embedded definitions.
func MustLoadFS(fsys fs.FS, path string) *FormDef {
	fd, err := LoadFormDefFS(fsys, path)
	if err != nil {
		panic(err)
	}
	return fd
}

func parseFormDef(raw []byte, path string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}
	if err := validateFormDef(&fd, path); err != nil {
		return nil, err
	}
	return &fd, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateFormDef enforces structural rules that cannot be expressed via YAML
// tags alone.
func validateFormDef(fd *FormDef, path string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", path)
	}
	if len(fd.Fields) > 0 && len(fd.Sections) > 0 {
		return fmt.Errorf("form definition %s: cannot have both 'fields' and 'sections'", path)
	}
	if len(fd.Fields) == 0 && len(fd.Sections) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields' or 'sections'", path)
	}
	if fd.Submit == "" {
		fd.Submit = "Submit"
	}
	if fd.Pending == "" {
		fd.Pending = "Sending..."
	}
	if fd.Failure == "" {
		fd.Failure = "Failed to submit form.  Please try again later."
	}

	for si := range fd.Sections {
		if fd.Sections[si].ID == "" {
			fd.Sections[si].ID = fmt.Sprintf("section%d", si+1)
		}
	}

	seen := make(map[string]struct{})
	for _, f := range fd.Flatten() {
		if err := validateField(&f, path); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", path, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

var knownTypes = map[string]bool{
	"text": true, "email": true, "tel": true, "number": true,
	"textarea": true, "select": true, "radio": true, "checkbox": true,
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, path string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", path)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", path, f.Name)
	}
	if !knownTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", path, f.Name, f.Type)
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("form %s: field '%s' invalid regex pattern: %v", path, f.Name, err)
		}
	}
	if f.MinLength < 0 {
		return fmt.Errorf("form %s: field '%s' minlength cannot be negative", path, f.Name)
	}
	if f.Type == "radio" && len(f.Options) == 0 {
		return fmt.Errorf("form %s: radio field '%s' has no options", path, f.Name)
	}
	return nil
}
