package media

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Local serves assets from a directory on disk.
type Local struct {
	fs afero.Fs
}

func NewLocal(dir string) *Local {
	return &Local{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

// NewLocalFs wraps an arbitrary filesystem; used with an in-memory fs in
// tests.
func NewLocalFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

func (l *Local) Open(_ context.Context, filename string) (Object, error) {
	// Filenames are opaque keys, never paths.
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return nil, ErrNotFound
	}

	f, err := l.fs.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
