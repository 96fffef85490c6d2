// Package upload stores message attachments on the local filesystem.
// Files are time-bounded like the rooms they belong to: every stored
// file is scheduled for deletion after the configured TTL.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/udalga/alkiscord/internal/config"
	"github.com/udalga/alkiscord/internal/domain"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".ogg": true, ".mov": true, ".avi": true}
)

// Store writes uploads under a base directory, one subdirectory per
// room, and serves them back by URL path.
type Store struct {
	basePath string
	maxSize  int64
	ttl      time.Duration
}

// NewStore creates the store and its base directory.
func NewStore(cfg config.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	absPath, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	return &Store{
		basePath: absPath,
		maxSize:  cfg.MaxSize,
		ttl:      cfg.TTL,
	}, nil
}

// BasePath returns the directory files are stored under.
func (s *Store) BasePath() string {
	return s.basePath
}

// MaxSize returns the per-file size limit in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Save stores one uploaded file for a room and returns its descriptor.
// Deletion is scheduled after the TTL; a file already removed by then
// is a no-op.
func (s *Store) Save(roomID string, fh *multipart.FileHeader) (domain.FileData, error) {
	if fh.Size > s.maxSize {
		return domain.FileData{}, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return domain.FileData{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeName(fh.Filename))
	dir := filepath.Join(s.basePath, sanitizeName(roomID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.FileData{}, fmt.Errorf("failed to create room dir: %w", err)
	}
	path := filepath.Join(dir, filename)

	if err := writeAtomic(path, src); err != nil {
		return domain.FileData{}, err
	}

	time.AfterFunc(s.ttl, func() { s.remove(path) })

	return domain.FileData{
		Filename:     filename,
		OriginalName: fh.Filename,
		Size:         fh.Size,
		MimeType:     fh.Header.Get("Content-Type"),
		URL:          "/uploads/" + sanitizeName(roomID) + "/" + filename,
		Kind:         classify(fh.Filename),
	}, nil
}

// remove deletes an expired file. Re-checks existence at fire time; a
// file deleted earlier is fine.
func (s *Store) remove(path string) {
	l := pkglog.L()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.Error().Err(err).Str("path", path).Msg("failed to remove expired upload")
		return
	}
	l.Debug().Str("path", path).Msg("expired upload removed")
}

// writeAtomic copies to a temp file in the target directory and renames
// it into place, so a partially-written file is never served.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move upload into place: %w", err)
	}

	success = true
	return nil
}

func sanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(filepath.Base(name), "_")
}

func classify(filename string) domain.FileKind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExts[ext]:
		return domain.FileKindImage
	case videoExts[ext]:
		return domain.FileKindVideo
	default:
		return domain.FileKindOther
	}
}
