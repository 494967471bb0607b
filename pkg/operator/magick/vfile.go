package magick

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

func newFile(path string, fs afero.Fs) *VFile {
	return &VFile{fs: fs, path: path}
}

// VFile is one scratch file, addressed by the external process through its
// real path.
type VFile struct {
	sync.Mutex
	fs    afero.Fs
	path  string
	freed bool
}

func (v *VFile) Filepath() string {
	if bp, ok := v.fs.(*afero.BasePathFs); ok {
		p, _ := bp.RealPath(v.path)
		return p
	}
	return v.path
}

func (v *VFile) Write(bs []byte) error {
	return afero.WriteFile(v.fs, v.path, bs, 0644)
}

func (v *VFile) Bytes() ([]byte, error) {
	bs, err := afero.ReadFile(v.fs, v.path)
	if err != nil {
		return nil, fmt.Errorf("vfile read failed: %w", err)
	}
	return bs, nil
}

func (v *VFile) Free() error {
	v.Lock()
	defer v.Unlock()

	if v.freed {
		return nil
	}

	if exists, err := afero.Exists(v.fs, v.path); err != nil {
		return err
	} else if exists {
		if err := v.fs.Remove(v.path); err != nil {
			return err
		}
	}

	v.freed = true
	return nil
}
