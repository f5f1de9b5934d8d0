package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/store"
)

// StoreTarget writes tables into structured store containers. A path is
// "<container file>/<table>".
type StoreTarget struct {
	now func() time.Time
}

// NewStoreTarget creates a StoreTarget.
func NewStoreTarget() *StoreTarget {
	return &StoreTarget{now: time.Now}
}

// Exists reports whether the container exists and holds the table.
func (t *StoreTarget) Exists(ctx context.Context, path string) (bool, error) {
	container, table := filepath.Split(path)
	container = filepath.Clean(container)

	info, err := os.Stat(container)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory, not a store container", container)
	}

	s, err := store.Open(container)
	if err != nil {
		return false, err
	}
	defer s.Close()
	return s.HasTable(ctx, table)
}

// Copy replaces (or appends to) the table with every field of the source
// object and records the copy in the container catalog.
func (t *StoreTarget) Copy(ctx context.Context, job Job) (int64, error) {
	container, table := filepath.Split(job.Path)
	container = filepath.Clean(container)

	fields, err := job.Source.ListFields(ctx, job.Object)
	if err != nil {
		return 0, err
	}

	s, err := store.Open(container)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	n, err := s.WriteTable(ctx, table, fields, job.Append, func(yield func([]any) error) error {
		return job.Source.StreamRows(ctx, job.Object, fields, yield)
	})
	if err != nil {
		return 0, err
	}

	err = s.RecordOutput(ctx, store.Output{
		RunID:     job.RunID,
		Object:    table,
		Source:    job.Object,
		Rows:      n,
		CreatedAt: t.now(),
	})
	if err != nil {
		return n, err
	}
	return n, nil
}
