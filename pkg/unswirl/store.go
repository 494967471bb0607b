package unswirl

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/inhies/go-bytesize"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func NewStore(fs afero.Fs, path string, logger *zap.Logger) (*Store, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}

	return &Store{
		fs:     fs,
		path:   path,
		format: format,
		log:    logger.With(zap.String("path", path)),
	}, nil
}

// Store persists the output image. Saves are serialized and replace the file
// through a rename so readers never see a torn image.
type Store struct {
	sync.Mutex
	fs     afero.Fs
	path   string
	format imaging.Format
	log    *zap.Logger
	saves  int
	frame  uint64
	next   uint64
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Save(img image.Image) error {
	_, err := s.save(0, img)
	return err
}

// NextFrame numbers a frame. Take it together with the copy of the image so
// numbers follow content.
func (s *Store) NextFrame() uint64 {
	return atomic.AddUint64(&s.next, 1)
}

// SaveFrame saves img unless a frame numbered seq or later is already on
// disk. It reports whether the file was written.
func (s *Store) SaveFrame(seq uint64, img image.Image) (bool, error) {
	return s.save(seq, img)
}

func (s *Store) save(seq uint64, img image.Image) (bool, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, s.format); err != nil {
		return false, err
	}

	s.Lock()
	defer s.Unlock()

	if seq > 0 && seq <= s.frame {
		s.log.With(zap.Uint64("frame", seq), zap.Uint64("saved", s.frame)).Debug("stale frame skipped")
		return false, nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if exists, err := afero.DirExists(s.fs, dir); err != nil {
			return false, err
		} else if !exists {
			if err2 := s.fs.MkdirAll(dir, 0755); err2 != nil {
				return false, err2
			}
		}
	}

	tmp := s.path + ".part"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0644); err != nil {
		return false, err
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return false, err
	}

	if seq > s.frame {
		s.frame = seq
	}
	s.saves++
	s.log.With(
		zap.Int("saves", s.saves),
		zap.String("size", bytesize.New(float64(buf.Len())).String()),
	).Debug("saved")
	return true, nil
}

func (s *Store) Load() (image.Image, error) {
	s.Lock()
	defer s.Unlock()

	bs, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(bs))
	return img, err
}

func (s *Store) Saves() int {
	s.Lock()
	defer s.Unlock()
	return s.saves
}
