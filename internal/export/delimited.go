package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DelimitedTarget writes comma or tab separated text.
//
// The header lists every field except geometry and reserved fields. It is
// written when a file is created; appended parts add rows only. Values that
// contain the delimiter, a quote or a line break are quoted with embedded
// quotes doubled. Lines end with "\n".
type DelimitedTarget struct {
	delim rune
	opts  Options
}

// NewDelimitedTarget creates a DelimitedTarget for delim.
func NewDelimitedTarget(delim rune, opts Options) *DelimitedTarget {
	return &DelimitedTarget{delim: delim, opts: opts.withDefaults()}
}

// Exists reports whether the file exists.
func (t *DelimitedTarget) Exists(_ context.Context, path string) (bool, error) {
	return fileExists(path)
}

// Copy writes the source object's attribute rows to job.Path.
func (t *DelimitedTarget) Copy(ctx context.Context, job Job) (int64, error) {
	fields, err := job.Source.ListFields(ctx, job.Object)
	if err != nil {
		return 0, err
	}
	header := t.opts.attributeFields(fields)
	if len(header) == 0 {
		return 0, fmt.Errorf("%s has no exportable fields", job.Object)
	}

	if err := os.MkdirAll(filepath.Dir(job.Path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if job.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	file, err := os.OpenFile(job.Path, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	n, err := t.write(ctx, buf, job, header)
	if err != nil {
		return n, err
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush file: %w", err)
	}
	return n, file.Close()
}

func (t *DelimitedTarget) write(ctx context.Context, buf *bufio.Writer, job Job, header []string) (int64, error) {
	writer := csv.NewWriter(buf)
	writer.Comma = t.delim

	if !job.Append {
		if err := writer.Write(header); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}

	var n int64
	record := make([]string, len(header))
	err := job.Source.StreamRows(ctx, job.Object, header, func(values []any) error {
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	writer.Flush()
	return n, writer.Error()
}

// formatValue renders one value as text. nil is empty.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}
