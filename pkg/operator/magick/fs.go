package magick

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/afero"
)

func newFs(path string) (afero.Fs, error) {
	fs := afero.NewOsFs()
	if exists, err := afero.DirExists(fs, path); err != nil {
		return nil, err
	} else if !exists {
		return nil, errors.New("dir not exists")
	}
	return afero.NewBasePathFs(fs, path), nil
}

// NewTmpFs opens a scratch area for markers and responses. An empty dir
// means a fresh directory under the OS temp dir.
func NewTmpFs(dir string) (*TmpFs, error) {
	if dir == "" {
		d, err := afero.TempDir(afero.NewOsFs(), "", "unswirl")
		if err != nil {
			return nil, fmt.Errorf("create tmpdir failed: %w", err)
		}
		dir = d
	}

	fs, err := newFs(dir)
	if err != nil {
		return nil, fmt.Errorf("create tmpdir failed: %w", err)
	}

	return &TmpFs{fs: fs, dir: dir}, nil
}

type TmpFs struct {
	fs  afero.Fs
	dir string
}

func (t *TmpFs) Dir() string {
	return t.dir
}

func (t *TmpFs) NewFile(ext string) *VFile {
	return newFile(xid.New().String()+ext, t.fs)
}

// RemoveAll drops the whole scratch directory.
func (t *TmpFs) RemoveAll() error {
	return os.RemoveAll(t.dir)
}
