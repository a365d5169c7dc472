package localimg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportAll(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.bodies["https://cdn.example.com/a.png"] = pngImage(t, 100, 100)
	fetch.bodies["https://cdn.example.com/b.png"] = pngImage(t, 100, 100)
	a := newTestApp(t, fetch)
	require.NoError(t, a.Store.SaveImporterSettings(ImporterSettings{Enabled: true, PostTypes: []string{TypePost}}))

	posts := []Post{
		{Slug: "with-image", Date: "2024-01-01", Type: TypePost, Published: true, Content: `<img src="https://cdn.example.com/a.png">`},
		{Slug: "broken-image", Date: "2024-01-02", Type: TypePost, Published: true, Content: `<img src="https://cdn.example.com/missing.png">`},
		{Slug: "no-images", Date: "2024-01-03", Type: TypePost, Published: true, Content: `<p>text</p>`},
		{Slug: "draft", Date: "2024-01-04", Type: TypePost, Published: false, Content: `<img src="https://cdn.example.com/b.png">`},
		{Slug: "page", Date: "2024-01-05", Type: TypePage, Published: true, Content: `<img src="https://cdn.example.com/b.png">`},
	}
	for _, p := range posts {
		require.NoError(t, a.Store.SavePost(p))
	}

	count, err := a.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := a.Store.GetPost("with-image")
	require.NoError(t, err)
	assert.Equal(t, `<img src="http://localhost:3000/uploads/a.png">`, got.Content)

	for _, slug := range []string{"broken-image", "draft", "page"} {
		got, err := a.Store.GetPost(slug)
		require.NoError(t, err)
		assert.Contains(t, got.Content, "https://cdn.example.com/", slug)
	}

	// A second run finds nothing left to import.
	count, err = a.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportAllIgnoresEnabledFlag(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.bodies["https://cdn.example.com/a.png"] = pngImage(t, 100, 100)
	a := newTestApp(t, fetch)
	require.NoError(t, a.Store.SaveImporterSettings(ImporterSettings{Enabled: false, PostTypes: []string{TypePost}}))
	require.NoError(t, a.Store.SavePost(Post{Slug: "p", Date: "2024-01-01", Type: TypePost, Published: true, Content: `<img src="https://cdn.example.com/a.png">`}))

	count, err := a.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportAllNoTypes(t *testing.T) {
	fetch := newFakeFetcher()
	a := newTestApp(t, fetch)
	require.NoError(t, a.Store.SaveImporterSettings(ImporterSettings{Enabled: true}))
	require.NoError(t, a.Store.SavePost(Post{Slug: "p", Date: "2024-01-01", Type: TypePost, Published: true, Content: `<img src="https://cdn.example.com/a.png">`}))

	count, err := a.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, fetch.Calls())
}
