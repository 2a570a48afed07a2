// internal/form/renderer.go
//
// Lessonforms – Forms subsystem: HTML renderer.
//
// Context
//   Given a parsed FormDef this file converts the definition into plain HTML
//   that the site script and the HTTP adapter agree on.  Element ids are the
//   field names themselves so that the JSON effects returned on submit
//   (field errors, scroll target) address the same nodes.
//
// Workflow
//   •  RenderForm writes the <form id="{formID}Form"> wrapper, then each
//      section (or the flat field list) via writeField.
//   •  Required, minlength, pattern, and placeholder attributes are attached
//      where relevant.  Select/radio options come from the YAML Options slice.
//   •  The Guard token is written as a hidden input for the submission
//      guard.  It carries its own signed issue time.
//   •  A hidden #successMessage panel follows the form.
//
// Style
//   Each field is wrapped in <div class="form-group"> with a trailing
//   <span class="error-message"> that the client fills from the effects.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
)

// RenderOptions bundles parameters influencing HTML output.
type RenderOptions struct {
	// Token is the Guard token embedded as csrf_token.  Empty omits it.
	Token string
	// Prefill provides initial field values keyed by field name.
	Prefill map[string]string
}

// RenderForm returns the HTML markup for fd.
func RenderForm(fd *FormDef, opts RenderOptions) (template.HTML, error) {
	if fd == nil {
		return "", fmt.Errorf("RenderForm: nil form definition")
	}
	var buf bytes.Buffer
	id := html.EscapeString(fd.ID)
	fmt.Fprintf(&buf, `<form id="%sForm" class="lesson-form" method="post" action="/%s" novalidate>`+"\n", id, id)
	if fd.Title != "" {
		buf.WriteString(`<h2>` + html.EscapeString(fd.Title) + `</h2>` + "\n")
	}

	if len(fd.Sections) > 0 {
		for _, s := range fd.Sections {
			fmt.Fprintf(&buf, `<div class="form-section" id="%s">`+"\n", html.EscapeString(s.ID))
			if s.Title != "" {
				buf.WriteString(`<h3>` + html.EscapeString(s.Title) + `</h3>` + "\n")
			}
			for _, f := range s.Fields {
				if err := writeField(&buf, &f, opts.Prefill); err != nil {
					return "", err
				}
			}
			buf.WriteString(`</div>` + "\n")
		}
	} else {
		for _, f := range fd.Fields {
			if err := writeField(&buf, &f, opts.Prefill); err != nil {
				return "", err
			}
		}
	}

	if opts.Token != "" {
		fmt.Fprintf(&buf, `<input type="hidden" name="csrf_token" value="%s">`+"\n", html.EscapeString(opts.Token))
	}
	fmt.Fprintf(&buf, `<button type="submit" class="submit-btn">%s</button>`+"\n", html.EscapeString(fd.Submit))
	buf.WriteString(`</form>` + "\n")

	buf.WriteString(`<div id="successMessage" class="success-message" hidden>`)
	buf.WriteString(html.EscapeString(fd.Success))
	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for an individual field into buf.
func writeField(buf *bytes.Buffer, f *FieldDef, prefill map[string]string) error {
	val := prefill[f.Name]
	name := html.EscapeString(f.Name)

	buf.WriteString(`<div class="form-group">` + "\n")
	if f.Type != "checkbox" {
		buf.WriteString(`<label for="` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")
	}

	switch f.Type {
	case "text", "email", "tel", "number":
		buf.WriteString(`<input id="` + name + `" name="` + name + `" type="` + f.Type + `"`)
		writeConstraints(buf, f)
		if val != "" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<textarea id="` + name + `" name="` + name + `"`)
		writeConstraints(buf, f)
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	case "select":
		buf.WriteString(`<select id="` + name + `" name="` + name + `"`)
		if f.Required {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")
		buf.WriteString(`<option value="">` + html.EscapeString(orLabel(f.Placeholder, "Select...")) + `</option>` + "\n")
		for _, opt := range f.Options {
			sel := ""
			if val == opt {
				sel = ` selected`
			}
			buf.WriteString(`<option value="` + html.EscapeString(opt) + `"` + sel + `>` + html.EscapeString(opt) + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case "radio":
		buf.WriteString(`<div class="radio-group" id="` + name + `">` + "\n")
		for i, opt := range f.Options {
			optID := name + "-" + strconv.Itoa(i)
			checked := ""
			if val == opt {
				checked = ` checked`
			}
			buf.WriteString(`<label class="radio-option" for="` + optID + `">`)
			buf.WriteString(`<input id="` + optID + `" name="` + name + `" type="radio" value="` + html.EscapeString(opt) + `"` + checked + `> `)
			buf.WriteString(html.EscapeString(opt) + `</label>` + "\n")
		}
		buf.WriteString(`</div>` + "\n")

	case "checkbox":
		checked := ""
		if truthy(val) {
			checked = ` checked`
		}
		buf.WriteString(`<label class="checkbox-label" for="` + name + `">`)
		buf.WriteString(`<input id="` + name + `" name="` + name + `" type="checkbox" value="on"` + checked + `> `)
		buf.WriteString(html.EscapeString(f.Label) + `</label>` + "\n")

	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	buf.WriteString(`<span class="error-message" data-for="` + name + `" aria-live="polite"></span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func writeConstraints(buf *bytes.Buffer, f *FieldDef) {
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.Required {
		buf.WriteString(` required`)
	}
	if f.MinLength > 0 {
		buf.WriteString(` minlength="` + strconv.Itoa(f.MinLength) + `"`)
	}
	if f.Pattern != "" {
		buf.WriteString(` pattern="` + html.EscapeString(f.Pattern) + `"`)
	}
}

func orLabel(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
