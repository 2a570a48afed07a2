// internal/config/model.go
//
// Typed configuration model for lessonforms.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                                – dotenv values,
//   • `conf/global.yaml`                             – primary static file,
//   • `LESSONFORMS_`-prefixed environment overrides  – highest precedence.
//
// Secret-bearing strings (`delivery.private_key`, `archive.dsn`,
// `forms.csrf_secret`) may hold a `vault:` reference.  The loader resolves
// them after unmarshal and before validation, so the rest of the service
// only ever sees plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

//
// Delivery section
//

// Delivery configures the EmailJS collaborator.  An empty PublicKey, or
// DryRun, selects the logging sender instead.
type Delivery struct {
	PublicKey  string        `koanf:"public_key"`
	PrivateKey string        `koanf:"private_key"`
	ServiceID  string        `koanf:"service_id"  validate:"required"`
	Endpoint   string        `koanf:"endpoint"    validate:"omitempty,url"`
	Timeout    time.Duration `koanf:"timeout"`
	DryRun     bool          `koanf:"dry_run"`
}

//
// Forms section
//

// Templates names the EmailJS template per message.
type Templates struct {
	Contact      string `koanf:"contact"      validate:"required"`
	Registration string `koanf:"registration" validate:"required"`
	Confirmation string `koanf:"confirmation" validate:"required"`
}

// Forms holds behaviour shared by every form endpoint.
type Forms struct {
	Recipient     string        `koanf:"recipient"      validate:"required,email"`
	SiteName      string        `koanf:"site_name"      validate:"required"`
	Templates     Templates     `koanf:"templates"`
	NotifyTimeout time.Duration `koanf:"notify_timeout"`
	ContactRevert time.Duration `koanf:"contact_revert"`
	CSRFSecret    string        `koanf:"csrf_secret"`
	MinFill       time.Duration `koanf:"min_fill"`
	OverrideDir   string        `koanf:"override_dir"`
}

//
// Archive section
//

// Archive enables the submission archive when DSN is set.
type Archive struct {
	DSN string `koanf:"dsn"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2 country database.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Log section
//

// Log controls the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // LESSONFORMS_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Delivery Delivery `koanf:"delivery"`
	Forms    Forms    `koanf:"forms"`
	Archive  Archive  `koanf:"archive"`
	Geo      Geo      `koanf:"geo"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}

// defaults are loaded beneath the YAML layer.
var defaults = map[string]any{
	"http.listen_addr":     ":8080",
	"http.read_timeout":    "10s",
	"http.write_timeout":   "30s",
	"http.idle_timeout":    "120s",
	"delivery.timeout":     "15s",
	"forms.notify_timeout": "5s",
	"forms.contact_revert": "5s",
	"forms.min_fill":       "2s",
	"forms.site_name":      "QuranLessons",
	"log.level":            "info",
}
