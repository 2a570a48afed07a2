// components/registration/registration.go
//
// Registration component – the student sign-up form.
//
// Context
//   Serves GET /registration, POST /registration/validate, and
//   POST /registration.  An accepted registration keeps the success panel
//   showing and then sends the registrant a confirmation through the
//   confirmation template.  That second send is a post-delivery hook: its
//   failure is logged and never reaches the visitor.
//
// Workflow
//   •  Builder   – the full parameter record plus the summary `message`.
//   •  Confirm   – maps the accepted record onto the confirmation template.
//
//------------------------------------------------------------------------------

package registration

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/lessonforms/internal/component"
	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/message"
)

//go:embed forms/*.yaml
var formsFS embed.FS

const (
	dateLayout = "1/2/2006"
	timeLayout = "3:04:05 PM"
	rule       = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
)

// compile-time assertion
var _ component.Component = (*Comp)(nil)

// Comp implements component.Component.
type Comp struct {
	ep *form.Endpoint
}

func init() { component.Register(&Comp{}) }

func (c *Comp) Name() string { return "registration" }

// Init registers the built-in definition and builds the endpoint.
func (c *Comp) Init(env component.Env) error {
	def, err := form.LoadFormDefFS(formsFS, "forms/registration.yaml")
	if err != nil {
		return err
	}
	def = component.RegisterDefault(env.Forms(), def)

	cfg := env.Config()
	ep, err := form.NewEndpoint(def, form.EndpointConfig{
		Controller: form.Options{
			ServiceID:  cfg.Delivery.ServiceID,
			TemplateID: cfg.Forms.Templates.Registration,
			Build:      Builder(cfg.Forms.Recipient, cfg.Forms.SiteName),
			Hooks: []form.Hook{
				Confirm(env.Sender(), cfg.Delivery.ServiceID, cfg.Forms.Templates.Confirmation),
			},
			Sender: env.Sender(),
		},
		Guard:         env.Guard(),
		NotifyTimeout: cfg.Forms.NotifyTimeout,
		RequestHooks:  component.ArchiveHooks(env, def.ID),
	})
	if err != nil {
		return err
	}
	c.ep = ep
	return nil
}

func (c *Comp) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", c.ep.Render)
	r.Post("/", c.ep.Submit)
	r.Post("/validate", c.ep.Validate)
	return r
}

/*──────────────────────────── record builder ──────────────────────────────*/

// Builder returns the RecordBuilder for registrations.  recipient receives
// the registration; site signs the summary.
func Builder(recipient, site string) form.RecordBuilder {
	return func(st *form.State, now time.Time) form.Record {
		rec := form.Record{
			"firstName":          st.Value("firstName"),
			"lastName":           st.Value("lastName"),
			"email":              st.Value("email"),
			"phone":              st.Value("phone"),
			"age":                st.Value("age"),
			"gender":             st.Value("gender"),
			"currentLevel":       st.Value("currentLevel"),
			"learningGoals":      st.Value("learningGoals"),
			"preferredTime":      st.Value("preferredTime"),
			"timezone":           st.Value("timezone"),
			"sessionFrequency":   st.Value("sessionFrequency"),
			"previousExperience": form.OrDefault(st.Value("previousExperience"), "Not specified"),
			"specialRequests":    form.OrDefault(st.Value("specialRequests"), "None"),
			"newsletter":         form.YesNo(st.Checked("newsletter")),
			"to_email":           recipient,
			"reply_to":           st.Value("email"),
			"registration_date":  now.Format(dateLayout),
		}
		rec["message"] = Summary(rec, site, now)
		return rec
	}
}

// Summary renders the human-readable block the site owner reads.
func Summary(rec form.Record, site string, now time.Time) string {
	var b strings.Builder
	section := func(title string) {
		fmt.Fprintf(&b, "\n%s:\n%s\n", title, rule)
	}
	item := func(label, value string) {
		fmt.Fprintf(&b, "• %s: %s\n", label, value)
	}

	fmt.Fprintf(&b, "New Student Registration - %s\n", site)

	section("PERSONAL INFORMATION")
	item("Name", rec["firstName"]+" "+rec["lastName"])
	item("Email", rec["email"])
	item("Phone", rec["phone"])
	item("Age Group", rec["age"])
	item("Gender", rec["gender"])

	section("LEARNING PREFERENCES")
	item("Current Level", rec["currentLevel"])
	item("Learning Goals", rec["learningGoals"])
	item("Preferred Time", rec["preferredTime"])
	item("Timezone", rec["timezone"])
	item("Session Frequency", form.OrDefault(rec["sessionFrequency"], "Not specified"))

	section("ADDITIONAL INFORMATION")
	item("Previous Experience", rec["previousExperience"])
	item("Special Requests", rec["specialRequests"])
	item("Newsletter Subscription", rec["newsletter"])

	section("REGISTRATION DETAILS")
	item("Registration Date", now.Format(dateLayout))
	item("Registration Time", now.Format(timeLayout))

	b.WriteString("\nPlease contact this student within 24 hours to schedule their first lesson.\n\n")
	b.WriteString("جزاك الله خيرا\n")
	b.WriteString(site + " Team")
	return b.String()
}

/*──────────────────────────── confirmation ────────────────────────────────*/

// ConfirmationParams maps an accepted registration onto the confirmation
// template.
func ConfirmationParams(rec form.Record) form.Record {
	return form.Record{
		"to_email":          rec["email"],
		"student_name":      rec["firstName"],
		"registration_date": rec["registration_date"],
		"preferred_time":    rec["preferredTime"],
		"current_level":     rec["currentLevel"],
		"learning_goals":    rec["learningGoals"],
	}
}

// Confirm returns the hook that sends the registrant a confirmation.
func Confirm(s message.Sender, serviceID, templateID string) form.Hook {
	return form.Hook{
		Name: "confirmation",
		Run: func(ctx context.Context, rec form.Record) error {
			resp, err := s.Send(ctx, serviceID, templateID, ConfirmationParams(rec))
			if err != nil {
				return err
			}
			if !resp.OK() {
				return fmt.Errorf("confirmation rejected with status %d", resp.Status)
			}
			return nil
		},
	}
}
