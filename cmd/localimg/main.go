package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eringen/localimg"
	"github.com/eringen/localimg/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "localimg",
		Short: "A publishing backend that keeps post images local",
		Long: `localimg serves an admin for posts and images. External images referenced
from post content are downloaded into the image library when a post is saved,
or on demand with the import command.

Configuration is read from the environment (and a .env file if present):
  SITE_NAME, SITE_URL, ADDR, DATABASE_PATH, UPLOAD_DIR, ADMIN_PASSWORD,
  SESSION_SECRET, COOKIE_SECURE, FETCH_TIMEOUT, MAX_IMAGE_BYTES, FETCH_RATE`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newImportCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv()
			cfg.AdminPassword = localimg.MustEnv("ADMIN_PASSWORD")
			cfg.SessionSecret = localimg.MustEnv("SESSION_SECRET")

			app := localimg.New(cfg, views.Default(cfg.Name))
			defer app.Close()
			return app.Start()
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import external images in every published post of the enabled types",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv()
			app := localimg.New(cfg, views.Default(cfg.Name))
			if err := app.Open(); err != nil {
				return err
			}
			defer app.Close()

			count, err := app.ImportAll(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), localimg.ImportNotice(count))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the localimg version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "localimg %s\n", version)
		},
	}
}

func configFromEnv() localimg.SiteConfig {
	cfg := localimg.SiteConfig{
		Name:          localimg.EnvOr("SITE_NAME", "Blog"),
		URL:           localimg.EnvOr("SITE_URL", "http://localhost:3000"),
		Addr:          localimg.EnvOr("ADDR", ":3000"),
		DatabasePath:  localimg.EnvOr("DATABASE_PATH", "data/blog.db"),
		UploadDir:     localimg.EnvOr("UPLOAD_DIR", "public/uploads"),
		CookieSecure:  localimg.EnvOr("COOKIE_SECURE", "") == "true",
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("localimg: invalid FETCH_TIMEOUT %q: %v", v, err)
		}
		cfg.FetchTimeout = d
	}
	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("localimg: invalid MAX_IMAGE_BYTES %q: %v", v, err)
		}
		cfg.MaxImageBytes = n
	}
	if v := os.Getenv("FETCH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("localimg: invalid FETCH_RATE %q: %v", v, err)
		}
		cfg.FetchRate = r
	}
	return cfg
}
