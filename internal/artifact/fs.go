package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FS keeps raw artifacts in root and clean artifacts in root/processed.
type FS struct {
	root string
}

func NewFS(root string) *FS {
	return &FS{root: root}
}

func (s *FS) dir(kind Kind) string {
	if kind == Clean {
		return filepath.Join(s.root, "processed")
	}
	return s.root
}

// Path returns the local file path of a.
func (s *FS) Path(a Artifact) string {
	return filepath.Join(s.dir(a.Kind), a.Name)
}

func (s *FS) List(_ context.Context, kind Kind) ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var list []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := kind.ParseName(e.Name())
		if !ok {
			continue
		}
		list = append(list, Artifact{Kind: kind, Date: date, Name: e.Name()})
	}
	sortByDate(list)
	return list, nil
}

func (s *FS) Read(_ context.Context, a Artifact) ([]byte, error) {
	data, err := os.ReadFile(s.Path(a))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", a.Name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.Name, err)
	}
	return data, nil
}

// Write stores data via a temp file and rename so readers never observe a
// partially written artifact.
func (s *FS) Write(_ context.Context, kind Kind, date time.Time, data []byte) (Artifact, error) {
	date = day(date)
	a := Artifact{Kind: kind, Date: date, Name: kind.FileName(date)}

	dir := s.dir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.Name+".*")
	if err != nil {
		return Artifact{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Artifact{}, fmt.Errorf("write %s: %w", a.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close %s: %w", a.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(a)); err != nil {
		return Artifact{}, fmt.Errorf("rename %s: %w", a.Name, err)
	}
	return a, nil
}
