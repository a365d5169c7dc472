package localimg

import (
	"context"
	"fmt"
)

// SaveKind distinguishes canonical saves from transient ones.
type SaveKind int

const (
	SaveCanonical SaveKind = iota
	SaveRevision
	SaveAutosave
)

func (k SaveKind) String() string {
	switch k {
	case SaveCanonical:
		return "canonical"
	case SaveRevision:
		return "revision"
	case SaveAutosave:
		return "autosave"
	}
	return fmt.Sprintf("SaveKind(%d)", int(k))
}

// SaveEvent is passed to save hooks after a post has been written.
type SaveEvent struct {
	Post Post
	Kind SaveKind
}

// SaveHook runs after a post is saved. Hooks cannot fail the save.
type SaveHook func(ctx context.Context, ev SaveEvent)

type importingKey struct{}

// withImporting marks ctx as carrying a write-back from the image importer.
// Saves made with it do not run the importer again.
func withImporting(ctx context.Context) context.Context {
	return context.WithValue(ctx, importingKey{}, true)
}

func isImporting(ctx context.Context) bool {
	v, _ := ctx.Value(importingKey{}).(bool)
	return v
}

// SavePost stores p and fires a canonical save event. When p replaces
// different content, the old content is kept as a history revision first and
// a revision event is fired for it. An empty type is stored as TypePost.
func (a *App) SavePost(ctx context.Context, p Post) error {
	if p.Type == "" {
		p.Type = TypePost
	}
	if prev, err := a.Store.GetPost(p.Slug); err == nil && prev.Content != p.Content && prev.Content != "" {
		if _, err := a.Store.SaveRevision(prev.Slug, RevisionHistory, prev.Content); err != nil {
			return fmt.Errorf("save revision: %w", err)
		}
		a.fireSave(ctx, SaveEvent{Post: prev, Kind: SaveRevision})
	}
	if err := a.Store.SavePost(p); err != nil {
		return err
	}
	a.fireSave(ctx, SaveEvent{Post: p, Kind: SaveCanonical})
	return nil
}

// AutosavePost stores p's content as a revision and fires an autosave event.
func (a *App) AutosavePost(ctx context.Context, p Post) (Revision, error) {
	rev, err := a.Store.SaveRevision(p.Slug, RevisionAutosave, p.Content)
	if err != nil {
		return Revision{}, err
	}
	a.fireSave(ctx, SaveEvent{Post: p, Kind: SaveAutosave})
	return rev, nil
}

// updatePostContent is the document store write-back: it replaces a post's
// content and fires a canonical save event for the updated post. Callers
// writing back imported content pass a context from withImporting.
func (a *App) updatePostContent(ctx context.Context, slug, content string) error {
	if err := a.Store.UpdatePostContent(slug, content); err != nil {
		return fmt.Errorf("update post %s: %w", slug, err)
	}
	post, err := a.Store.GetPost(slug)
	if err != nil {
		return fmt.Errorf("reload post %s: %w", slug, err)
	}
	a.fireSave(ctx, SaveEvent{Post: post, Kind: SaveCanonical})
	return nil
}

// fireSave runs the importer on ev, then the registered hooks. When the
// importer rewrote the post, its write-back has already delivered the
// rewritten post to the hooks and ev is not delivered.
func (a *App) fireSave(ctx context.Context, ev SaveEvent) {
	if a.importOnSave(ctx, ev) {
		return
	}
	for _, hook := range a.saveHooks {
		hook(ctx, ev)
	}
}

// importOnSave localizes external images of a freshly saved post and writes
// the rewritten content back. It reports whether the write-back happened.
func (a *App) importOnSave(ctx context.Context, ev SaveEvent) bool {
	if a.Importer == nil || isImporting(ctx) {
		return false
	}
	if ev.Kind != SaveCanonical {
		return false
	}
	settings, err := a.Store.ImporterSettings()
	if err != nil {
		a.Echo.Logger.Errorf("importer: load settings: %v", err)
		return false
	}
	if !settings.Enabled {
		return false
	}
	if !settings.AllowsType(ev.Post.Type) {
		return false
	}
	if ev.Post.Content == "" {
		return false
	}

	content, changed := a.Importer.Localize(ctx, ev.Post.Content, ev.Post.Slug, settings.Allowlist())
	if !changed {
		return false
	}
	if err := a.updatePostContent(withImporting(ctx), ev.Post.Slug, content); err != nil {
		a.Echo.Logger.Errorf("importer: %v", err)
		return false
	}
	return true
}
