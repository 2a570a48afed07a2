// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete form component lives under components/<name> and calls
// component.Register() in an init() function.  At boot cmd/web builds one
// Env, calls Init(env) on every component, and mounts each component's
// Routes() under “/<name>”.

package component

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/lessonforms/internal/archive"
	"github.com/yanizio/lessonforms/internal/config"
	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/message"
)

// Env exposes the process-wide resources a component needs during Init.
type Env interface {
	Config() *config.Config
	Sender() message.Sender
	Guard() *form.Guard
	Forms() *form.Registry
	Archive() *archive.Store // nil when archive.dsn is empty
	Log() *zap.SugaredLogger
}

// Component contract.
//
// Init registers the component's built-in form definitions (unless an
// override already claimed the ID) and builds its endpoints.  Routes() is
// mounted under “/<Name()>”, e.g.
//
//	r := chi.NewRouter()
//	r.Get("/", ep.Render)
//	r.Post("/", ep.Submit)
//	r.Post("/validate", ep.Validate)
//	return r
type Component interface {
	Name() string
	Init(Env) error
	Routes() chi.Router
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises every registered component and mounts its routes on r.
func Mount(r chi.Router, env Env) error {
	for _, c := range All() {
		if err := c.Init(env); err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
		r.Mount("/"+c.Name(), c.Routes())
		env.Log().Infow("component mounted", "component", c.Name())
	}
	return nil
}

// RegisterDefault adds fd to reg unless an override with the same ID was
// loaded first, and returns whichever definition is registered.
func RegisterDefault(reg *form.Registry, fd *form.FormDef) *form.FormDef {
	if cur, ok := reg.Get(fd.ID); ok {
		return cur
	}
	reg.Register(fd)
	return fd
}

// ArchiveHooks returns the per-request archive hook for formID, or nil when
// the archive is disabled.
func ArchiveHooks(env Env, formID string) func(*http.Request) []form.Hook {
	store := env.Archive()
	if store == nil {
		return nil
	}
	return func(r *http.Request) []form.Hook {
		return []form.Hook{store.Hook(formID, r)}
	}
}

/*──────────────────────────── concrete Env ─────────────────────────────────*/

// Deps is the Env cmd/web builds.  Tests construct it directly.
type Deps struct {
	Settings  *config.Config
	Delivery  message.Sender
	FormGuard *form.Guard
	Registry  *form.Registry
	Store     *archive.Store
	Logger    *zap.SugaredLogger
}

func (d *Deps) Config() *config.Config  { return d.Settings }
func (d *Deps) Sender() message.Sender  { return d.Delivery }
func (d *Deps) Guard() *form.Guard      { return d.FormGuard }
func (d *Deps) Forms() *form.Registry   { return d.Registry }
func (d *Deps) Archive() *archive.Store { return d.Store }

func (d *Deps) Log() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.S()
	}
	return d.Logger
}
