package localimg

// Post types a post can be saved as.
const (
	TypePost = "post"
	TypePage = "page"
)

// PostTypes lists every post type in display order.
var PostTypes = []string{TypePost, TypePage}

// Post is the content record stored in SQLite. Content is HTML.
type Post struct {
	Title     string
	Date      string
	Tags      []string
	Summary   string
	Slug      string
	Type      string
	Content   string
	Published bool
}

// Revision is a stored copy of a post's content: either the content a save
// replaced, or an editor autosave.
type Revision struct {
	ID      int64
	Slug    string
	Kind    string // RevisionHistory or RevisionAutosave
	Content string
	SavedAt string
}

// Image is a locally stored media asset.
type Image struct {
	ID           int64
	Filename     string
	OriginalName string
	MimeType     string
	Path         string
	Owner        string // slug of the post the image was imported for, if any
	Width        int
	Height       int
	Size         int
	UploadedAt   string
	URL          string
	Variants     []ImageVariant
}

// ImageVariant is a resized copy of an Image.
type ImageVariant struct {
	ImageID  int64
	Name     string // thumbnail, medium, large
	Filename string
	Width    int
	Height   int
}

// ImporterPage carries everything the importer settings view renders.
type ImporterPage struct {
	Settings  ImporterSettings
	PostTypes []string
	Notice    string
	Message   string
	CSRFToken string
}
