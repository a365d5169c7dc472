package localimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// variantSizes are the widths generated for every stored image that is wider.
var variantSizes = []struct {
	name  string
	width int
}{
	{"thumbnail", 150},
	{"medium", 300},
	{"large", 1024},
}

// maxDecodePixels bounds the declared width*height of any image decoded.
const maxDecodePixels = 40_000_000

// ErrImageTooLarge is returned for images whose declared size exceeds
// maxDecodePixels.
var ErrImageTooLarge = errors.New("image dimensions too large")

// imageTypes maps accepted file extensions to MIME types. Anything else is
// rejected as an unsupported file type.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".avif": "image/avif",
	".heic": "image/heic",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// Library keeps image files on disk and their metadata in the Store.
// It is the asset store external images are imported into.
type Library struct {
	store   *Store
	dir     string
	baseURL string
	logger  echo.Logger
}

// NewLibrary creates a Library writing files to dir and serving them under
// baseURL + "/uploads/".
func NewLibrary(store *Store, dir, baseURL string, logger echo.Logger) *Library {
	return &Library{store: store, dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// UniqueName sanitizes name and appends a counter until it collides with
// neither a file in dir nor a recorded image or variant.
func (l *Library) UniqueName(dir, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "image"
	}
	candidate := base + ext
	counter := 1
	for l.taken(dir, candidate) {
		counter++
		candidate = fmt.Sprintf("%s-%d%s", base, counter, ext)
	}
	return candidate
}

func (l *Library) taken(dir, name string) bool {
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return true
	}
	taken, err := l.store.ImageFilenameTaken(name)
	return err == nil && taken
}

// Write stores data at path, creating the directory if needed.
func (l *Library) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DetectType returns the MIME type for name's extension, or "" if the type
// is not accepted.
func (l *Library) DetectType(name string) string {
	return imageTypes[strings.ToLower(filepath.Ext(name))]
}

// Register records the file at path as an image owned by ownerID.
func (l *Library) Register(path, mimeType, ownerID string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	name := filepath.Base(path)
	return l.store.SaveImage(Image{
		Filename:     name,
		OriginalName: name,
		MimeType:     mimeType,
		Path:         path,
		Owner:        ownerID,
		Size:         int(info.Size()),
	})
}

// GenerateVariants records the image's dimensions and writes a resized copy
// for every variant size smaller than the original.
func (l *Library) GenerateVariants(id int64, path string) error {
	rec, err := l.store.GetImage(id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src, err := decodeImage(data)
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if err := l.store.SetImageDimensions(id, w, h); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	ext := strings.ToLower(filepath.Ext(rec.Filename))
	base := strings.TrimSuffix(rec.Filename, filepath.Ext(rec.Filename))
	asJPEG := rec.MimeType == "image/jpeg"
	if !asJPEG {
		ext = ".png"
	}

	var errs []error
	for _, size := range variantSizes {
		if w <= size.width {
			continue
		}
		newH := h * size.width / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, size.width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

		var buf bytes.Buffer
		if asJPEG {
			err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
		} else {
			err = png.Encode(&buf, dst)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", size.name, err))
			continue
		}

		name := l.UniqueName(dir, fmt.Sprintf("%s-%dx%d%s", base, size.width, newH, ext))
		if err := l.Write(filepath.Join(dir, name), buf.Bytes()); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", size.name, err))
			continue
		}
		if err := l.store.SaveVariant(ImageVariant{
			ImageID:  id,
			Name:     size.name,
			Filename: name,
			Width:    size.width,
			Height:   newH,
		}); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", size.name, err))
		}
	}
	return errors.Join(errs...)
}

// PublicURL returns the absolute URL an image is served at.
func (l *Library) PublicURL(id int64) (string, error) {
	img, err := l.store.GetImage(id)
	if err != nil {
		return "", err
	}
	return l.URLFor(img.Filename), nil
}

// URLFor returns the absolute URL of a file in the uploads directory.
func (l *Library) URLFor(filename string) string {
	return l.baseURL + "/uploads/" + url.PathEscape(filename)
}

// Remove deletes a file written by Write. A missing file is not an error.
func (l *Library) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Add stores an already processed upload: it picks a unique name, writes the
// file, records it and generates variants. Variant failures are returned
// alongside the stored image.
func (l *Library) Add(img Image, data []byte) (Image, error) {
	img.Filename = l.UniqueName(l.dir, img.Filename)
	img.Path = filepath.Join(l.dir, img.Filename)
	if img.MimeType == "" {
		img.MimeType = l.DetectType(img.Filename)
	}
	img.Size = len(data)

	if err := l.Write(img.Path, data); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	id, err := l.store.SaveImage(img)
	if err != nil {
		if rmErr := l.Remove(img.Path); rmErr != nil {
			l.logger.Warnf("library: failed to remove %s: %v", img.Path, rmErr)
		}
		return Image{}, err
	}
	img.ID = id
	img.URL = l.URLFor(img.Filename)
	return img, l.GenerateVariants(id, img.Path)
}

// List returns every image with its URL and variants filled in.
func (l *Library) List() ([]Image, error) {
	images, err := l.store.ListImages()
	if err != nil {
		return nil, err
	}
	for i := range images {
		images[i].URL = l.URLFor(images[i].Filename)
		variants, err := l.store.ListVariants(images[i].ID)
		if err != nil {
			return nil, err
		}
		images[i].Variants = variants
	}
	return images, nil
}

// Delete removes an image, its variants, and their files.
func (l *Library) Delete(id int64) error {
	img, err := l.store.GetImage(id)
	if err != nil {
		return err
	}
	variants, err := l.store.ListVariants(id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(img.Path)
	for _, v := range variants {
		_ = l.Remove(filepath.Join(dir, v.Filename))
	}
	_ = l.Remove(img.Path)
	return l.store.DeleteImage(id)
}

// decodeImage decodes data, rejecting it before any pixels are allocated when
// its declared size exceeds maxDecodePixels.
func decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
