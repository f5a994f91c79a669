package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fleveque/ecosort/internal/model"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
	"image/heif": ".heif",
	"image/avif": ".avif",
}

// ImageArchive keeps copies of classified images on disk when storage.keep_images is on.
// Images are stored at: {baseDir}/{YYYY-MM-DD}/{uuid}{ext}
type ImageArchive struct {
	baseDir string
	now     func() time.Time
}

// NewImageArchive creates the archive, ensuring the base directory exists.
func NewImageArchive(baseDir string) (*ImageArchive, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &ImageArchive{baseDir: baseDir, now: time.Now}, nil
}

// Save writes the image under a fresh random name and returns its path.
func (a *ImageArchive) Save(img model.Image) (string, error) {
	ext, ok := extensions[img.MIMEType]
	if !ok {
		ext = ".bin"
	}

	dir := filepath.Join(a.baseDir, a.now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating day directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+ext)
	// 0644: owner rw, group r, others r. Standard for non-executable files.
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	return path, nil
}

// Read returns the archived bytes at path. Paths outside the archive are refused.
func (a *ImageArchive) Read(path string) ([]byte, error) {
	if !a.contains(path) {
		return nil, fmt.Errorf("path %s is outside the image archive", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archived image not found: %s", path)
		}
		return nil, fmt.Errorf("reading archived image: %w", err)
	}
	return data, nil
}

// Exists checks if an archived image exists on disk.
func (a *ImageArchive) Exists(path string) bool {
	if !a.contains(path) {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// PruneBefore removes whole day directories older than the cutoff and
// reports how many it removed.
func (a *ImageArchive) PruneBefore(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return 0, fmt.Errorf("listing image archive: %w", err)
	}

	day := cutoff.UTC().Format("2006-01-02")
	removed := 0
	for _, e := range entries {
		// Day directories sort lexically, so string comparison is date comparison.
		if !e.IsDir() || e.Name() >= day {
			continue
		}
		if _, err := time.Parse("2006-01-02", e.Name()); err != nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(a.baseDir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (a *ImageArchive) contains(path string) bool {
	rel, err := filepath.Rel(a.baseDir, path)
	return err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
