package localimg

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested post, revision or image does not exist.
var ErrNotFound = sql.ErrNoRows

// Store wraps a SQLite database and provides CRUD operations for posts,
// revisions, images and settings.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the admin read while an import writes back; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    tags TEXT NOT NULL,
    summary TEXT NOT NULL,
    content TEXT NOT NULL,
    published INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS revisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL,
    kind TEXT NOT NULL,
    content TEXT NOT NULL,
    saved_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_slug ON revisions(slug);

CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL UNIQUE,
    original_name TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    path TEXT NOT NULL,
    owner TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    uploaded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS image_variants (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    filename TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		`ALTER TABLE posts ADD COLUMN published INTEGER NOT NULL DEFAULT 1;`,
		`ALTER TABLE posts ADD COLUMN type TEXT NOT NULL DEFAULT 'post';`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return err
		}
	}
	return nil
}

const postColumns = `slug, title, date, tags, summary, content, published, type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var slug, title, date, tags, summary, content, typ string
	var published int
	if err := row.Scan(&slug, &title, &date, &tags, &summary, &content, &published, &typ); err != nil {
		return Post{}, err
	}
	return Post{
		Slug:      slug,
		Title:     title,
		Date:      date,
		Tags:      ParseTags(tags),
		Summary:   summary,
		Content:   content,
		Type:      typ,
		Published: published == 1,
	}, nil
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a post by slug regardless of published status.
func (s *Store) GetPost(slug string) (Post, error) {
	return scanPost(s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug))
}

// ListAllPosts returns every post (published and drafts) ordered by date descending.
func (s *Store) ListAllPosts() ([]Post, error) {
	rows, err := s.db.Query(`SELECT ` + postColumns + ` FROM posts ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ListPublishedByType returns published posts whose type is one of types,
// oldest first. An empty types slice matches nothing.
func (s *Store) ListPublishedByType(types []string) ([]Post, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = t
	}
	rows, err := s.db.Query(`SELECT `+postColumns+` FROM posts WHERE published = 1 AND type IN (`+placeholders+`) ORDER BY date ASC, slug ASC`, args...)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// SavePost upserts a post. Tags are normalized to lowercase and an empty type
// becomes TypePost.
func (s *Store) SavePost(p Post) error {
	normalizedTags := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		normalizedTags[i] = strings.ToLower(strings.TrimSpace(t))
	}
	tagString := "," + strings.Join(normalizedTags, ",") + ","
	published := 0
	if p.Published {
		published = 1
	}
	if p.Type == "" {
		p.Type = TypePost
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Title, p.Date, tagString, p.Summary, p.Content, published, p.Type)
	return err
}

// UpdatePostContent replaces only the content of an existing post.
func (s *Store) UpdatePostContent(slug, content string) error {
	res, err := s.db.Exec(`UPDATE posts SET content = ? WHERE slug = ?`, content, slug)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its revisions.
func (s *Store) DeletePost(slug string) error {
	if _, err := s.db.Exec(`DELETE FROM revisions WHERE slug = ?`, slug); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM posts WHERE slug = ?`, slug)
	return err
}

// Revision kinds stored in the revisions table.
const (
	RevisionHistory  = "revision"
	RevisionAutosave = "autosave"
)

// SaveRevision stores a copy of a post's content. kind is RevisionHistory for
// the content a save replaced, RevisionAutosave for editor autosaves.
func (s *Store) SaveRevision(slug, kind, content string) (Revision, error) {
	rev := Revision{
		Slug:    slug,
		Kind:    kind,
		Content: content,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	res, err := s.db.Exec(`INSERT INTO revisions (slug, kind, content, saved_at) VALUES (?, ?, ?, ?)`, rev.Slug, rev.Kind, rev.Content, rev.SavedAt)
	if err != nil {
		return Revision{}, err
	}
	rev.ID, err = res.LastInsertId()
	return rev, err
}

// LatestRevision returns the most recent revision of the given kind for slug,
// or ErrNotFound.
func (s *Store) LatestRevision(slug, kind string) (Revision, error) {
	rev := Revision{Slug: slug, Kind: kind}
	err := s.db.QueryRow(`SELECT id, content, saved_at FROM revisions WHERE slug = ? AND kind = ? ORDER BY id DESC LIMIT 1`, slug, kind).
		Scan(&rev.ID, &rev.Content, &rev.SavedAt)
	if err != nil {
		return Revision{}, err
	}
	return rev, nil
}

// CountRevisions returns how many revisions of kind exist for slug.
func (s *Store) CountRevisions(slug, kind string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM revisions WHERE slug = ? AND kind = ?`, slug, kind).Scan(&n)
	return n, err
}

const imageColumns = `id, filename, original_name, mime_type, path, owner, width, height, size, uploaded_at`

func scanImage(row rowScanner) (Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.Filename, &img.OriginalName, &img.MimeType, &img.Path,
		&img.Owner, &img.Width, &img.Height, &img.Size, &img.UploadedAt)
	return img, err
}

// SaveImage inserts image metadata and returns the new image id.
func (s *Store) SaveImage(img Image) (int64, error) {
	if img.UploadedAt == "" {
		img.UploadedAt = time.Now().UTC().Format(time.RFC3339)
	}
	res, err := s.db.Exec(`INSERT INTO images (filename, original_name, mime_type, path, owner, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.MimeType, img.Path, img.Owner, img.Width, img.Height, img.Size, img.UploadedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetImage returns image metadata by id.
func (s *Store) GetImage(id int64) (Image, error) {
	return scanImage(s.db.QueryRow(`SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
}

// ImageFilenameTaken reports whether an image or variant already uses name.
func (s *Store) ImageFilenameTaken(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT (SELECT COUNT(*) FROM images WHERE filename = ?) + (SELECT COUNT(*) FROM image_variants WHERE filename = ?)`, name, name).Scan(&n)
	return n > 0, err
}

// ListImages returns every image, newest first.
func (s *Store) ListImages() ([]Image, error) {
	rows, err := s.db.Query(`SELECT ` + imageColumns + ` FROM images ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// SetImageDimensions records the pixel size of an image once it is known.
func (s *Store) SetImageDimensions(id int64, width, height int) error {
	_, err := s.db.Exec(`UPDATE images SET width = ?, height = ? WHERE id = ?`, width, height, id)
	return err
}

// DeleteImage removes image metadata and its variants.
func (s *Store) DeleteImage(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM image_variants WHERE image_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM images WHERE id = ?`, id)
	return err
}

// SaveVariant records a resized copy of an image.
func (s *Store) SaveVariant(v ImageVariant) error {
	_, err := s.db.Exec(`INSERT INTO image_variants (image_id, name, filename, width, height) VALUES (?, ?, ?, ?, ?)`,
		v.ImageID, v.Name, v.Filename, v.Width, v.Height)
	return err
}

// ListVariants returns the variants of an image, smallest first.
func (s *Store) ListVariants(imageID int64) ([]ImageVariant, error) {
	rows, err := s.db.Query(`SELECT image_id, name, filename, width, height FROM image_variants WHERE image_id = ? ORDER BY width ASC`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []ImageVariant
	for rows.Next() {
		var v ImageVariant
		if err := rows.Scan(&v.ImageID, &v.Name, &v.Filename, &v.Width, &v.Height); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// GetSetting retrieves a setting value by key. Returns "" and false if unset.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
