// Package csvfile persists a session to a CSV file: one column per sensor
// label, no index column, rows streamed as blocks arrive.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aakash-soni-git/bitalino/internal/session"
)

var (
	ErrCreateFailed = errors.New("create session file failed")
	ErrWriteFailed  = errors.New("write session file failed")
)

type Config struct {
	// Dir is created when missing.
	Dir    string
	Prefix string
	Rate   int
	Stamp  string
	Labels []string
}

// Writer streams session blocks into a CSV file named
// <prefix>_AQ_FS_<rate>_TS_<stamp>.csv under the data directory.
type Writer struct {
	f      *os.File
	w      *csv.Writer
	path   string
	labels []string
}

// New creates the data directory and the session file and writes the
// header row.
func New(cfg Config) (*Writer, error) {
	const fn = "csvfile:New"
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrCreateFailed, err)
	}
	name := fmt.Sprintf("%s_AQ_FS_%d_TS_%s.csv", cfg.Prefix, cfg.Rate, cfg.Stamp)
	path := filepath.Join(cfg.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrCreateFailed, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(cfg.Labels); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrWriteFailed, err)
	}
	return &Writer{f: f, w: w, path: path, labels: append([]string(nil), cfg.Labels...)}, nil
}

// Path returns where the session file lives.
func (w *Writer) Path() string { return w.path }

// WriteBlock appends one row per sample, one column per label.
func (w *Writer) WriteBlock(_ context.Context, blk *session.Block) error {
	const fn = "csvfile:WriteBlock"
	values := blk.Values
	if len(values) != len(w.labels) {
		return fmt.Errorf("%s:%w: got %d series for %d labels", fn, ErrWriteFailed, len(values), len(w.labels))
	}
	if len(values) == 0 {
		return nil
	}
	row := make([]string, len(values))
	for i := 0; i < blk.Samples(); i++ {
		for j := range values {
			row[j] = strconv.FormatFloat(values[j][i], 'g', -1, 64)
		}
		if err := w.w.Write(row); err != nil {
			return fmt.Errorf("%s:%w:%w", fn, ErrWriteFailed, err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *Writer) Close(_ context.Context) error {
	const fn = "csvfile:Close"
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteFailed, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteFailed, err)
	}
	return nil
}
