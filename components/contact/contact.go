// components/contact/contact.go
//
// Contact component – the "send us a message" form.
//
// Context
//   Serves GET /contact (markup), POST /contact/validate (blur check), and
//   POST /contact (submit).  An accepted message shows the success panel,
//   which reverts to an empty form after forms.contact_revert.
//
//   Template parameters sent to EmailJS:
//
//      from_name, from_email, phone, subject, message, to_email, reply_to
//
//------------------------------------------------------------------------------

package contact

import (
	"embed"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/lessonforms/internal/component"
	"github.com/yanizio/lessonforms/internal/form"
)

//go:embed forms/*.yaml
var formsFS embed.FS

// compile-time assertion
var _ component.Component = (*Comp)(nil)

// Comp implements component.Component.
type Comp struct {
	ep *form.Endpoint
}

func init() { component.Register(&Comp{}) }

func (c *Comp) Name() string { return "contact" }

// Init registers the built-in definition and builds the endpoint.
func (c *Comp) Init(env component.Env) error {
	def, err := form.LoadFormDefFS(formsFS, "forms/contact.yaml")
	if err != nil {
		return err
	}
	def = component.RegisterDefault(env.Forms(), def)

	cfg := env.Config()
	ep, err := form.NewEndpoint(def, form.EndpointConfig{
		Controller: form.Options{
			ServiceID:   cfg.Delivery.ServiceID,
			TemplateID:  cfg.Forms.Templates.Contact,
			Build:       Builder(cfg.Forms.Recipient),
			RevertAfter: cfg.Forms.ContactRevert,
			Sender:      env.Sender(),
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

// Builder returns the RecordBuilder for the contact form.  recipient is the
// fixed inbox that receives every message.
func Builder(recipient string) form.RecordBuilder {
	return func(st *form.State, _ time.Time) form.Record {
		email := st.Value("email")
		return form.Record{
			"from_name":  st.Value("name"),
			"from_email": email,
			"phone":      st.Value("phone"),
			"subject":    st.Value("subject"),
			"message":    st.Value("message"),
			"to_email":   recipient,
			"reply_to":   email,
		}
	}
}
