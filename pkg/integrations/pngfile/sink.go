// Package pngfile implements a status icon that writes the current glyph to
// a PNG file, for panels that poll an image path (polybar, waybar, conky).
package pngfile

import (
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Sink writes each published glyph to Path, replacing the file atomically
type Sink struct {
	Path string
}

type handle struct {
	owner    *Sink
	data     []byte
	released bool
}

func (h *handle) Release() error {
	if h.released {
		return errors.New("handle released twice")
	}
	h.released = true
	h.data = nil
	return nil
}

func New(path string) (*Sink, error) {
	if path == "" {
		return nil, errors.New("png sink needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create png sink directory")
	}
	return &Sink{Path: path}, nil
}

// NewHandle encodes img; nothing touches the disk until SetImage
func (s *Sink) NewHandle(img *image.RGBA) (desktop.IconHandle, error) {
	data, err := glyph.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &handle{owner: s, data: data}, nil
}

func (s *Sink) SetImage(h desktop.IconHandle) error {
	ph, ok := h.(*handle)
	if !ok || ph.owner != s {
		return errors.New("handle was not created by this sink")
	}
	if ph.released {
		return errors.New("handle already released")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".glyph-*.png")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(ph.data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write glyph")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write glyph")
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(err, "failed to chmod glyph")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.Path), "failed to replace glyph")
}

// Location is unknown: the panel decides where the file is shown
func (s *Sink) Location() (image.Point, bool) {
	return image.Point{}, false
}
