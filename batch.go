package localimg

import (
	"context"
	"fmt"
)

// ImportAll runs the image importer over every published post whose type is
// enabled in the importer settings, one post at a time. It returns the number
// of posts whose content was rewritten.
func (a *App) ImportAll(ctx context.Context) (int, error) {
	settings, err := a.Store.ImporterSettings()
	if err != nil {
		return 0, fmt.Errorf("load importer settings: %w", err)
	}
	posts, err := a.Store.ListPublishedByType(settings.PostTypes)
	if err != nil {
		return 0, fmt.Errorf("list posts: %w", err)
	}
	allowlist := settings.Allowlist()

	updated := 0
	for _, p := range posts {
		content, changed := a.Importer.Localize(ctx, p.Content, p.Slug, allowlist)
		if !changed {
			continue
		}
		if err := a.updatePostContent(withImporting(ctx), p.Slug, content); err != nil {
			a.Echo.Logger.Errorf("importer: %v", err)
			continue
		}
		updated++
	}
	a.Echo.Logger.Infof("importer: imported images in %d of %d post(s)", updated, len(posts))
	return updated, nil
}
