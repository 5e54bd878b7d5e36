// Package storage keeps uploaded client files on the local disk.
//
// Files are stored flat under the media root by a generated name; the
// original name lives only in the database.
//
// Import Path: supportportal.io/portal/internal/storage
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned by Save when the content exceeds the limit.
var ErrTooLarge = errors.New("file exceeds the upload limit")

// ErrBadName is returned for names that would escape the media root.
var ErrBadName = errors.New("invalid stored file name")

// Local stores files in a directory.
type Local struct {
	root string
}

// NewLocal creates the media root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Local{root: root}, nil
}

// StoredName generates a unique name that keeps the original extension.
func StoredName(original string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 16 {
		ext = ""
	}
	return id.String() + ext
}

func (l *Local) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	return filepath.Join(l.root, name), nil
}

// Save writes r to name. limit <= 0 disables the size check. A partially
// written file is removed on error.
func (l *Local) Save(name string, r io.Reader, limit int64) (int64, error) {
	p, err := l.path(name)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(p)
		if errors.Is(err, ErrTooLarge) {
			return 0, err
		}
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	return n, nil
}

// Open opens a stored file for reading.
func (l *Local) Open(name string) (*os.File, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Remove deletes a stored file. A missing file is not an error.
func (l *Local) Remove(name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
