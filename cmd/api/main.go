package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"votaciones.org/internal/auth"
	"votaciones.org/internal/httpapi"
	"votaciones.org/internal/migrate"
	"votaciones.org/internal/obs"
	"votaciones.org/internal/store/sqlstore"
	"votaciones.org/internal/stream"
	"votaciones.org/internal/votacion"
	"votaciones.org/migrations"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

func main() {
	// .env keeps election-day deployments self-contained
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	driver := envOr("VOTACIONES_DB_DRIVER", sqlstore.DriverSQLite)
	dsn := envOr("VOTACIONES_DB_DSN", "votaciones.db")
	addr := envOr("VOTACIONES_ADDR", ":8080")

	st, err := sqlstore.Open(driver, dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	mgr := migrate.NewManager(st.DB(), driver, migrations.FS, migrations.Dir(driver), migrations.SeedsDir)
	if err := mgr.Up(ctx); err != nil {
		cancel()
		log.Fatalf("apply migrations: %v", err)
	}
	if err := mgr.Seed(ctx); err != nil {
		cancel()
		log.Fatalf("apply seeds: %v", err)
	}
	if err := ensureAdmin(ctx, st); err != nil {
		cancel()
		log.Fatalf("provision admin: %v", err)
	}
	cancel()

	events := stream.New()
	svc := votacion.NewCoordinator(st, votacion.WithNotificador(events))
	api := httpapi.New(httpapi.ReadyProbe{DB: st.DB()}, version, svc, st, events)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: SSE subscriptions stay open for the whole journey
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting votaciones-api %s (%s/%s) on %s", version, driver, dsn, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

// ensureAdmin provisions the administrator account on first boot. The
// password comes from the environment and is never stored in plaintext.
func ensureAdmin(ctx context.Context, st *sqlstore.Store) error {
	pass := os.Getenv("VOTACIONES_ADMIN_PASS")
	if pass == "" {
		log.Println("VOTACIONES_ADMIN_PASS not set; skipping admin provisioning")
		return nil
	}
	usuario := envOr("VOTACIONES_ADMIN_USER", "rafael.perez")
	nombre := envOr("VOTACIONES_ADMIN_NOMBRE", strings.ToUpper(strings.ReplaceAll(usuario, ".", " ")))

	hash, err := auth.HashPassword(pass)
	if err != nil {
		return err
	}
	return st.CrearUsuario(ctx, votacion.Usuario{
		Usuario:  usuario,
		Nombre:   nombre,
		PassHash: hash,
		Rol:      votacion.RolAdministrador,
	})
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
