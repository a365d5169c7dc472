package localimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/eringen/localimg/importer"
)

// fakeFetcher serves fixed bodies by URL and counts requests.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, fmt.Errorf("%w: non-200 response: 404", importer.ErrTransport)
	}
	return body, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// textViews renders each page as a short line of text that tests can match.
func textViews() ViewFuncs {
	text := func(format string, args ...any) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, format, args...)
			return err
		})
	}
	return ViewFuncs{
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return text("login error=%t", showError)
		},
		AdminDashboard: func(posts []Post, message string, csrfToken string) templ.Component {
			return text("dashboard posts=%d msg=%s", len(posts), message)
		},
		AdminForm: func(post Post, autosave *Revision, csrfToken string) templ.Component {
			return text("form %s autosave=%t", post.Slug, autosave != nil)
		},
		AdminImages: func(images []Image, csrfToken string) templ.Component {
			return text("images=%d", len(images))
		},
		AdminImporter: func(p ImporterPage) templ.Component {
			return text("importer enabled=%t types=%v allowlist=%s notice=%s msg=%s",
				p.Settings.Enabled, p.Settings.PostTypes, p.Settings.DomainAllowlist, p.Notice, p.Message)
		},
		NotFound:    func() templ.Component { return text("not found") },
		ServerError: func() templ.Component { return text("server error") },
	}
}

func newTestApp(t *testing.T, fetch importer.Fetcher, opts ...Option) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := SiteConfig{
		Name:          "Test",
		URL:           "http://localhost:3000",
		DatabasePath:  filepath.Join(dir, "data", "blog.db"),
		UploadDir:     filepath.Join(dir, "uploads"),
		AdminPassword: "secret",
		SessionSecret: "test-session-secret",
	}
	opts = append(opts, WithFetcher(fetch))
	a := New(cfg, textViews(), opts...)
	a.Echo.Logger.SetOutput(io.Discard)
	require.NoError(t, a.Open())
	t.Cleanup(func() { a.Close() })
	return a
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
