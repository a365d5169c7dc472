package localimg

import (
	"database/sql"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestSaveAndGetPost(t *testing.T) {
	s := newTestStore(t)

	post := Post{
		Slug:      "test-post",
		Title:     "Test Post",
		Date:      "2024-01-15",
		Tags:      []string{"Go", "testing"},
		Summary:   "A test post summary",
		Type:      TypePage,
		Content:   `<p>Hello <img src="https://cdn.example.com/a.jpg"></p>`,
		Published: true,
	}
	if err := s.SavePost(post); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	got, err := s.GetPost("test-post")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Title != post.Title {
		t.Errorf("Title = %q, want %q", got.Title, post.Title)
	}
	if got.Content != post.Content {
		t.Errorf("Content = %q, want %q", got.Content, post.Content)
	}
	if got.Type != TypePage {
		t.Errorf("Type = %q, want %q", got.Type, TypePage)
	}
	if !got.Published {
		t.Error("Published should be true")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "testing" {
		t.Errorf("Tags = %v, want [go testing]", got.Tags)
	}
}

func TestSavePostDefaultsType(t *testing.T) {
	s := newTestStore(t)

	if err := s.SavePost(Post{Slug: "untyped", Title: "Untyped", Date: "2024-01-01"}); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	got, err := s.GetPost("untyped")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Type != TypePost {
		t.Errorf("Type = %q, want %q", got.Type, TypePost)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPost("nonexistent")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListAllPosts(t *testing.T) {
	s := newTestStore(t)

	posts := []Post{
		{Slug: "published", Title: "Published", Date: "2024-01-01", Content: "c1", Published: true},
		{Slug: "unpublished", Title: "Unpublished", Date: "2024-01-02", Content: "c2", Published: false},
	}
	for _, p := range posts {
		if err := s.SavePost(p); err != nil {
			t.Fatalf("SavePost failed: %v", err)
		}
	}

	got, err := s.ListAllPosts()
	if err != nil {
		t.Fatalf("ListAllPosts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListAllPosts count = %d, want 2 (including unpublished)", len(got))
	}
	if got[0].Slug != "unpublished" {
		t.Errorf("ListAllPosts[0] = %q, want newest first", got[0].Slug)
	}
}

func TestListPublishedByType(t *testing.T) {
	s := newTestStore(t)

	posts := []Post{
		{Slug: "newer-post", Date: "2024-03-01", Type: TypePost, Published: true},
		{Slug: "older-post", Date: "2024-01-01", Type: TypePost, Published: true},
		{Slug: "draft-post", Date: "2024-02-01", Type: TypePost, Published: false},
		{Slug: "about", Date: "2024-02-15", Type: TypePage, Published: true},
	}
	for _, p := range posts {
		if err := s.SavePost(p); err != nil {
			t.Fatalf("SavePost failed: %v", err)
		}
	}

	tests := []struct {
		types []string
		want  []string
	}{
		{[]string{TypePost}, []string{"older-post", "newer-post"}},
		{[]string{TypePage}, []string{"about"}},
		{[]string{TypePost, TypePage}, []string{"older-post", "about", "newer-post"}},
		{nil, nil},
		{[]string{"attachment"}, nil},
	}
	for _, tt := range tests {
		got, err := s.ListPublishedByType(tt.types)
		if err != nil {
			t.Fatalf("ListPublishedByType(%v) failed: %v", tt.types, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("ListPublishedByType(%v) = %d posts, want %d", tt.types, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].Slug != tt.want[i] {
				t.Errorf("ListPublishedByType(%v)[%d] = %q, want %q", tt.types, i, got[i].Slug, tt.want[i])
			}
		}
	}
}

func TestUpdatePostContent(t *testing.T) {
	s := newTestStore(t)

	post := Post{Slug: "p", Title: "P", Date: "2024-01-01", Summary: "keep", Content: "old", Published: true}
	if err := s.SavePost(post); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	if err := s.UpdatePostContent("p", "new"); err != nil {
		t.Fatalf("UpdatePostContent failed: %v", err)
	}
	got, err := s.GetPost("p")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Content != "new" {
		t.Errorf("Content = %q, want %q", got.Content, "new")
	}
	if got.Summary != "keep" || !got.Published {
		t.Errorf("UpdatePostContent touched other fields: %+v", got)
	}

	if err := s.UpdatePostContent("missing", "x"); err != ErrNotFound {
		t.Errorf("UpdatePostContent(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeletePost(t *testing.T) {
	s := newTestStore(t)

	if err := s.SavePost(Post{Slug: "to-delete", Title: "To Delete", Date: "2024-01-01", Content: "c"}); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	if _, err := s.SaveRevision("to-delete", RevisionAutosave, "draft"); err != nil {
		t.Fatalf("SaveRevision failed: %v", err)
	}

	if err := s.DeletePost("to-delete"); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}

	if _, err := s.GetPost("to-delete"); err != sql.ErrNoRows {
		t.Errorf("Post should not exist after delete, got err: %v", err)
	}
	n, err := s.CountRevisions("to-delete", RevisionAutosave)
	if err != nil {
		t.Fatalf("CountRevisions failed: %v", err)
	}
	if n != 0 {
		t.Errorf("revisions after delete = %d, want 0", n)
	}
}

func TestDeleteNonexistentPost(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeletePost("nonexistent"); err != nil {
		t.Errorf("DeletePost on nonexistent should not error, got: %v", err)
	}
}

func TestRevisions(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LatestRevision("p", RevisionAutosave); err != ErrNotFound {
		t.Fatalf("LatestRevision on empty = %v, want ErrNotFound", err)
	}

	for _, content := range []string{"one", "two"} {
		if _, err := s.SaveRevision("p", RevisionAutosave, content); err != nil {
			t.Fatalf("SaveRevision failed: %v", err)
		}
	}
	if _, err := s.SaveRevision("p", RevisionHistory, "history"); err != nil {
		t.Fatalf("SaveRevision failed: %v", err)
	}

	rev, err := s.LatestRevision("p", RevisionAutosave)
	if err != nil {
		t.Fatalf("LatestRevision failed: %v", err)
	}
	if rev.Content != "two" || rev.Kind != RevisionAutosave || rev.SavedAt == "" {
		t.Errorf("LatestRevision = %+v, want content two", rev)
	}

	autosaves, _ := s.CountRevisions("p", RevisionAutosave)
	history, _ := s.CountRevisions("p", RevisionHistory)
	if autosaves != 2 || history != 1 {
		t.Errorf("CountRevisions = %d autosave, %d history; want 2, 1", autosaves, history)
	}
}

func TestImagesAndVariants(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveImage(Image{Filename: "photo.jpg", OriginalName: "photo.jpg", MimeType: "image/jpeg", Path: "/tmp/photo.jpg", Owner: "hello", Size: 42})
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if _, err := s.SaveImage(Image{Filename: "photo.jpg", MimeType: "image/jpeg"}); err == nil {
		t.Error("SaveImage with duplicate filename should fail")
	}

	if err := s.SetImageDimensions(id, 400, 200); err != nil {
		t.Fatalf("SetImageDimensions failed: %v", err)
	}
	if err := s.SaveVariant(ImageVariant{ImageID: id, Name: "medium", Filename: "photo-300x150.jpg", Width: 300, Height: 150}); err != nil {
		t.Fatalf("SaveVariant failed: %v", err)
	}
	if err := s.SaveVariant(ImageVariant{ImageID: id, Name: "thumbnail", Filename: "photo-150x75.jpg", Width: 150, Height: 75}); err != nil {
		t.Fatalf("SaveVariant failed: %v", err)
	}

	img, err := s.GetImage(id)
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if img.Owner != "hello" || img.Width != 400 || img.Height != 200 || img.UploadedAt == "" {
		t.Errorf("GetImage = %+v", img)
	}

	variants, err := s.ListVariants(id)
	if err != nil {
		t.Fatalf("ListVariants failed: %v", err)
	}
	if len(variants) != 2 || variants[0].Name != "thumbnail" {
		t.Errorf("ListVariants = %+v, want thumbnail first", variants)
	}

	for name, want := range map[string]bool{"photo.jpg": true, "photo-150x75.jpg": true, "other.jpg": false} {
		taken, err := s.ImageFilenameTaken(name)
		if err != nil {
			t.Fatalf("ImageFilenameTaken failed: %v", err)
		}
		if taken != want {
			t.Errorf("ImageFilenameTaken(%q) = %v, want %v", name, taken, want)
		}
	}

	if err := s.DeleteImage(id); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if _, err := s.GetImage(id); err != ErrNotFound {
		t.Errorf("GetImage after delete = %v, want ErrNotFound", err)
	}
	if variants, _ := s.ListVariants(id); len(variants) != 0 {
		t.Errorf("variants after delete = %d, want 0", len(variants))
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.GetSetting("missing"); err != nil || ok {
		t.Fatalf("GetSetting(missing) = ok %v, err %v", ok, err)
	}
	if err := s.SetSetting("k", "v1"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("k", "v2"); err != nil {
		t.Fatalf("SetSetting upsert failed: %v", err)
	}
	val, ok, err := s.GetSetting("k")
	if err != nil || !ok || val != "v2" {
		t.Errorf("GetSetting(k) = %q, %v, %v; want v2", val, ok, err)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{",", nil},
		{",go,", []string{"go"}},
		{",go,web,", []string{"go", "web"}},
		{",go, web ,rust,", []string{"go", "web", "rust"}},
	}

	for _, tt := range tests {
		got := ParseTags(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ParseTags(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseTags(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
