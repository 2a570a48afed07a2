// cmd/web/main.go
//
// lessonforms – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load configuration (.env → conf/global.yaml → LESSONFORMS_ env),
//     resolving `vault:` secret references.
//
//  2. Start the daily rotating logger (tees to console when running in a
//     TTY, or when log.tee is set).
//
//  3. Build the delivery collaborator: the EmailJS client when a public key
//     is configured, otherwise the logging dry-run sender.
//
//  4. Open the optional submission archive and GeoLite2 database.
//
//  5. Load form definition overrides, then initialise and mount every
//     registered component under “/<name>”.
//
//  6. Expose Prometheus /metrics and serve until SIGINT / SIGTERM, then
//     drain in-flight submissions.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/lessonforms/internal/archive"
	"github.com/yanizio/lessonforms/internal/component"
	"github.com/yanizio/lessonforms/internal/config"
	"github.com/yanizio/lessonforms/internal/database"
	"github.com/yanizio/lessonforms/internal/form"
	"github.com/yanizio/lessonforms/internal/logger"
	"github.com/yanizio/lessonforms/internal/message"
	"github.com/yanizio/lessonforms/internal/middleware"
	"github.com/yanizio/lessonforms/internal/requestinfo"
	"github.com/yanizio/lessonforms/internal/server"

	_ "github.com/yanizio/lessonforms/components/contact"
	_ "github.com/yanizio/lessonforms/components/registration"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, cfg.Log.Level, cfg.Log.Tee || runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 3.  Delivery collaborator ───────────────────────────────────────
	//
	sender, err := newSender(cfg, logOut)
	if err != nil {
		logOut.Fatalw("delivery client", "err", err)
	}

	//
	// ── 4.  Optional archive and GeoLite2 ──────────────────────────────
	//
	var store *archive.Store
	if cfg.Archive.DSN != "" {
		db, err := database.Open(ctx, cfg.Archive.DSN)
		if err != nil {
			logOut.Fatalw("archive database", "err", err)
		}
		defer db.Close()
		store = archive.New(db)
		logOut.Infow("submission archive online")
	}
	if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
		// Country is a nice-to-have on archived rows; keep serving.
		logOut.Warnw("geo database unavailable", "err", err)
	}
	defer requestinfo.CloseGeo()

	//
	// ── 5.  Forms and components ────────────────────────────────────────
	//
	forms := form.NewRegistry()
	if n, err := forms.LoadDir(cfg.Forms.OverrideDir); err != nil {
		logOut.Fatalw("form overrides", "dir", cfg.Forms.OverrideDir, "err", err)
	} else if n > 0 {
		logOut.Infow("form overrides loaded", "count", n)
	}

	env := &component.Deps{
		Settings:  cfg,
		Delivery:  sender,
		FormGuard: form.NewGuard([]byte(cfg.Forms.CSRFSecret), cfg.Forms.MinFill),
		Registry:  forms,
		Store:     store,
		Logger:    logOut,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security(cfg.HTTP.ForceHTTPS))
	r.Use(requestinfo.Enrich)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := component.Mount(r, env); err != nil {
		logOut.Fatalw("mount components", "err", err)
	}

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, r))
	go func() {
		logOut.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalw("http server", "err", err)
		}
	}()

	<-ctx.Done()
	logOut.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Delivery.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logOut.Errorw("shutdown", "err", err)
	}
}

// newSender picks the EmailJS client or the dry-run logger.
func newSender(cfg *config.Config, log *zap.SugaredLogger) (message.Sender, error) {
	d := cfg.Delivery
	if d.DryRun || d.PublicKey == "" {
		log.Warnw("delivery in dry-run mode; messages are logged, not sent")
		return message.LogSender{Log: log}, nil
	}
	return message.NewClient(message.Options{
		PublicKey:  d.PublicKey,
		PrivateKey: d.PrivateKey,
		Endpoint:   d.Endpoint,
		Timeout:    d.Timeout,
	})
}
