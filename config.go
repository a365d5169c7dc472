package localimg

import (
	"time"

	"github.com/eringen/localimg/importer"
)

// SiteConfig holds all configuration for a localimg site.
type SiteConfig struct {
	Name string // Site name (default "Blog")
	URL  string // Canonical URL (default "http://localhost:3000"); image sources containing it are local

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/blog.db")
	UploadDir    string // Where images are written (default "public/uploads"), served under /uploads

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	FetchTimeout  time.Duration // Per-image download timeout (default 30s)
	MaxImageBytes int64         // Largest remote image accepted (default 10MB)
	FetchRate     float64       // Remote image downloads per second; 0 is unthrottled
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/blog.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "public/uploads"
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxImageBytes == 0 {
		c.MaxImageBytes = 10 << 20
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithSaveHook registers a hook that runs after every post save. Canonical
// saves reach it after the image importer, carrying the rewritten content.
func WithSaveHook(fn SaveHook) Option {
	return func(a *App) {
		a.saveHooks = append(a.saveHooks, fn)
	}
}

// WithFetcher replaces the HTTP client the importer downloads images with.
func WithFetcher(f importer.Fetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}
