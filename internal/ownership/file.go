package ownership

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileDocument stores the ids as a pretty-printed JSON array in one file.
//
// Writes go through a temp file and rename, so readers never see a partial
// document. There is no cross-process lock: run one writer process per file.
type FileDocument struct {
	path string
}

func NewFileDocument(path string) *FileDocument {
	return &FileDocument{path: path}
}

func (d *FileDocument) Path() string { return d.path }

func (d *FileDocument) Load(_ context.Context) ([]int64, error) {
	raw, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.path, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (d *FileDocument) Update(ctx context.Context, fn func([]int64) ([]int64, bool)) error {
	ids, err := d.Load(ctx)
	if err != nil {
		return err
	}
	next, changed := fn(ids)
	if !changed {
		return nil
	}
	return d.write(next)
}

func (d *FileDocument) write(ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(d.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
