// Package localimg is a small publishing backend built with Go, Echo, and templ
// that keeps post images local: whenever a post is saved, <img> elements that
// point at other hosts are downloaded into the image library and the post is
// rewritten to reference the local copies. The same import can be run on
// demand over every published post.
//
// Users provide their own templ components via the ViewFuncs struct;
// localimg handles the handler logic, middleware, and database operations.
package localimg

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/localimg/importer"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(posts []Post, message string, csrfToken string) templ.Component
	AdminForm      func(post Post, autosave *Revision, csrfToken string) templ.Component
	AdminImages    func(images []Image, csrfToken string) templ.Component
	AdminImporter  func(page ImporterPage) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App is the central localimg application. It wires together the store,
// image library, importer, handlers, middleware, and user-provided templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Library  *Library
	Importer *importer.Localizer
	Views    ViewFuncs

	loginLimiter *LoginLimiter
	saveHooks    []SaveHook
	fetcher      importer.Fetcher
	customRoutes []func(*App)
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Open initializes the database, image library and importer without serving
// HTTP. Start calls it; the CLI import command uses it on its own.
func (a *App) Open() error {
	if a.Store != nil {
		return nil
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("localimg: init store: %w", err)
	}
	a.Store = store
	a.Library = NewLibrary(store, a.Config.UploadDir, a.Config.URL, a.Echo.Logger)

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = importer.NewHTTPFetcher(a.Config.FetchTimeout, a.Config.MaxImageBytes).WithRate(a.Config.FetchRate)
	}
	a.Importer = importer.New(importer.Config{
		BaseURL:   a.Config.URL,
		UploadDir: a.Config.UploadDir,
	}, a.Library, importer.WithFetcher(fetcher), importer.WithLogger(a.Echo.Logger))
	return nil
}

// Start initializes the app, registers middleware and routes, and starts the server.
func (a *App) Start() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("localimg: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("localimg: SessionSecret is required")
	}

	if err := a.Open(); err != nil {
		return err
	}
	a.setup()

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setup() {
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/uploads", a.Config.UploadDir)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.GET("/admin/post/:slug/", a.handleAdminPost)
	e.POST("/admin/save/", a.handleAdminSave)
	e.POST("/admin/autosave/", a.handleAdminAutosave)
	e.DELETE("/admin/post/:slug/", a.handleAdminDelete)
	e.GET("/admin/images/", a.handleImageList)
	e.POST("/admin/images/upload/", a.handleImageUpload)
	e.DELETE("/admin/images/:id/", a.handleImageDelete)

	// Image importer settings and manual run
	e.GET("/admin/importer/", a.handleImporterSettings)
	e.POST("/admin/importer/", a.handleImporterSave)
	e.POST("/admin/importer/run/", a.handleImporterRun)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("localimg: required environment variable %s is not set", key)
	}
	return v
}
