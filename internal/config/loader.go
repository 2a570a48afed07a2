// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from four layers (highest
precedence last):

  0. Built-in defaults (listen address, timeouts, log level).
  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `LESSONFORMS_`, where `__` maps to “.”
     (e.g., `LESSONFORMS_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs, secret
references are resolved through Vault, the result is validated, enriched
with the runtime root path, and cached in an `atomic.Pointer` for lock-free
reads.  `Reload()` simply calls `Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay.
  • ERROR spans: YAML parse, env overlay, unmarshal, vault, validation.
  • INFO span: final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • A Vault client is only created when a `vault:` reference is present,
    and its token renewal stops once the references are resolved.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/lessonforms/internal/vault"
)

const envPrefix = "LESSONFORMS_"

// secretTTL bounds how long a resolved secret stays in the Vault cache.
const secretTTL = 10 * time.Minute

var current atomic.Pointer[Config]

// newVault is swapped in tests.
var newVault = vault.New

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves LESSONFORMS_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to executable heuristic for the
// production layout.
func rootDir() string {
	if r := os.Getenv(envPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Options overrides discovery for tests and tools.
type Options struct {
	Root string   // empty → rootDir()
	KV   vault.KV // nil → vault.New on first reference
}

// Load reads defaults, .env, YAML, env overrides, resolves secrets,
// validates, and caches Config.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, Options{})
}

// LoadWith is Load with explicit options.
func LoadWith(ctx context.Context, o Options) (*Config, error) {
	root := o.Root
	if root == "" {
		root = rootDir()
	}
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: LESSONFORMS_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, envPrefix), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, &cfg, o.KV); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"dry_run", cfg.Delivery.DryRun || cfg.Delivery.PublicKey == "",
		"archive", cfg.Archive.DSN != "",
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets swaps `vault:` references for their values in place.
func resolveSecrets(ctx context.Context, cfg *Config, kv vault.KV) error {
	// A client created here is only needed until every reference is read.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fields := []*string{
		&cfg.Delivery.PublicKey,
		&cfg.Delivery.PrivateKey,
		&cfg.Forms.CSRFSecret,
		&cfg.Archive.DSN,
	}
	for _, p := range fields {
		if !vault.IsRef(*p) {
			continue
		}
		if kv == nil {
			cli, err := newVault(ctx, zap.S())
			if err != nil {
				return err
			}
			kv = cli
		}
		v, err := vault.Resolve(ctx, kv, *p, secretTTL)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = v
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

func Reload(ctx context.Context) error { _, err := Load(ctx); return err }
