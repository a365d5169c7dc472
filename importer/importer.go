// Package importer localizes externally hosted images referenced from HTML
// content: it downloads each remote <img> source, hands the bytes to an
// AssetStore and rewrites the content to point at the stored copy.
package importer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/net/html"
)

// Config carries everything the routine would otherwise look up globally.
type Config struct {
	BaseURL   string // local origin; any src containing it is left alone
	UploadDir string // directory handed to AssetStore.UniqueName
}

// AssetStore persists downloaded bytes as managed assets.
type AssetStore interface {
	UniqueName(dir, name string) string
	Write(path string, data []byte) error
	DetectType(name string) string
	Register(path, mimeType, ownerID string) (int64, error)
	GenerateVariants(id int64, path string) error
	PublicURL(id int64) (string, error)
	Remove(path string) error
}

// Imported describes one image that was stored and rewritten.
type Imported struct {
	Src     string
	AssetID int64
	URL     string
}

// Skip describes one image that was left untouched and why.
type Skip struct {
	Src string
	Err error
}

// Result is the outcome of a single Run.
type Result struct {
	Content  string
	Changed  bool
	Imported []Imported
	Skipped  []Skip
}

// Localizer runs the image localization routine.
type Localizer struct {
	cfg    Config
	assets AssetStore
	fetch  Fetcher
	logger echo.Logger
}

// Option configures a Localizer.
type Option func(*Localizer)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(l *Localizer) {
		l.fetch = f
	}
}

// WithLogger sets the logger used for skipped images.
func WithLogger(lg echo.Logger) Option {
	return func(l *Localizer) {
		l.logger = lg
	}
}

// New creates a Localizer storing assets in assets.
func New(cfg Config, assets AssetStore, opts ...Option) *Localizer {
	l := &Localizer{
		cfg:    cfg,
		assets: assets,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetch == nil {
		l.fetch = NewHTTPFetcher(0, 0)
	}
	if l.logger == nil {
		l.logger = log.New("importer")
	}
	return l
}

// Localize rewrites remote image references in content to local assets owned
// by ownerID. changed reports whether at least one reference was rewritten.
func (l *Localizer) Localize(ctx context.Context, content, ownerID string, allowlist []string) (string, bool) {
	res := l.Run(ctx, content, ownerID, allowlist)
	return res.Content, res.Changed
}

// Run is Localize with a per-image report.
func (l *Localizer) Run(ctx context.Context, content, ownerID string, allowlist []string) Result {
	res := Result{Content: content}

	srcs, err := imageSources(content)
	if err != nil {
		l.logger.Errorf("importer: failed to parse content for %s: %v", ownerID, err)
		return res
	}

	for _, src := range srcs {
		asset, err := l.importOne(ctx, src, ownerID, allowlist)
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{Src: src, Err: err})
			continue
		}
		res.Content = replaceSrc(res.Content, src, asset.URL)
		res.Imported = append(res.Imported, asset)
		res.Changed = true
	}
	return res
}

func (l *Localizer) importOne(ctx context.Context, src, ownerID string, allowlist []string) (Imported, error) {
	if l.cfg.BaseURL != "" && strings.Contains(src, l.cfg.BaseURL) {
		return Imported{}, ErrAlreadyLocal
	}
	if len(allowlist) > 0 && !hostAllowed(src, allowlist) {
		return Imported{}, ErrNotAllowed
	}

	body, err := l.fetch.Fetch(ctx, src)
	if err != nil {
		l.logger.Warnf("importer: failed to download %s: %v", src, err)
		return Imported{}, err
	}

	name := l.assets.UniqueName(l.cfg.UploadDir, filenameFor(src, body))
	filePath := filepath.Join(l.cfg.UploadDir, name)

	if err := l.assets.Write(filePath, body); err != nil {
		l.logger.Warnf("importer: failed to save image to %s: %v", filePath, err)
		return Imported{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	mimeType := l.assets.DetectType(name)
	if mimeType == "" {
		l.logger.Warnf("importer: unsupported filetype for %s", name)
		l.cleanup(filePath)
		return Imported{}, fmt.Errorf("%w: unsupported filetype for %s", ErrStorage, name)
	}

	id, err := l.assets.Register(filePath, mimeType, ownerID)
	if err != nil {
		l.logger.Warnf("importer: failed to create asset for %s: %v", filePath, err)
		l.cleanup(filePath)
		return Imported{}, fmt.Errorf("%w: %v", ErrRegistration, err)
	}

	if err := l.assets.GenerateVariants(id, filePath); err != nil {
		l.logger.Warnf("importer: variants for asset %d: %v", id, err)
	}

	localURL, err := l.assets.PublicURL(id)
	if err != nil || localURL == "" {
		l.logger.Warnf("importer: no public url for asset %d: %v", id, err)
		return Imported{}, fmt.Errorf("%w: no public url for asset %d", ErrRegistration, id)
	}

	l.logger.Infof("importer: %s -> %s (%s)", src, localURL, humanize.Bytes(uint64(len(body))))
	return Imported{Src: src, AssetID: id, URL: localURL}, nil
}

func (l *Localizer) cleanup(filePath string) {
	if err := l.assets.Remove(filePath); err != nil {
		l.logger.Warnf("importer: failed to remove %s: %v", filePath, err)
	}
}

// imageSources returns the distinct non-empty src attributes of every <img>
// in document order, including those inside <noscript>. A repeated src is
// downloaded once; the substitution rewrites all of its occurrences.
func imageSources(content string) ([]string, error) {
	root, err := html.ParseWithOptions(strings.NewReader(content), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var srcs []string
	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		srcs = append(srcs, src)
	})
	return srcs, nil
}

// replaceSrc substitutes every literal occurrence of src in content, not only
// the attribute it was read from. The parser decodes entities, so the escaped
// form (&amp;) is substituted as well.
func replaceSrc(content, src, localURL string) string {
	content = strings.ReplaceAll(content, src, localURL)
	if escaped := strings.ReplaceAll(src, "&", "&amp;"); escaped != src {
		content = strings.ReplaceAll(content, escaped, localURL)
	}
	return content
}

func hostAllowed(src string, allowlist []string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range allowlist {
		if h == host {
			return true
		}
	}
	return false
}

// filenameFor derives a file name from the URL path. Names without an
// extension get one sniffed from the body.
func filenameFor(src string, body []byte) string {
	name := ""
	if u, err := url.Parse(src); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	if path.Ext(name) == "" {
		name += mimetype.Detect(body).Extension()
	}
	return name
}

// ParseAllowlist splits a comma-separated host list, trimming whitespace and
// dropping empty entries.
func ParseAllowlist(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		if h := strings.ToLower(strings.TrimSpace(part)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
