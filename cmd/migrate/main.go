package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"votaciones.org/internal/migrate"
	"votaciones.org/internal/store/sqlstore"
	"votaciones.org/migrations"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	var (
		driver = flag.String("driver", envOr("VOTACIONES_DB_DRIVER", sqlstore.DriverSQLite), "database driver (pgx or sqlite)")
		dsn    = flag.String("dsn", envOr("VOTACIONES_DB_DSN", "votaciones.db"), "database DSN")
		dir    = flag.String("migrations", "", "override: read SQL from this directory instead of the embedded files")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or VOTACIONES_DB_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := sqlstore.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	var (
		fsys           fs.FS = migrations.FS
		migrationsPath       = migrations.Dir(*driver)
		seedsPath            = migrations.SeedsDir
	)
	if *dir != "" {
		fsys = os.DirFS(*dir)
		migrationsPath = "."
		seedsPath = ""
	}

	mgr := migrate.NewManager(st.DB(), *driver, fsys, migrationsPath, seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
