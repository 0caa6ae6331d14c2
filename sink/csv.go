package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/harvest/models"
)

// csvHeader titles the columns in NormalizedRecord field order.
var csvHeader = []string{
	"Name", "Address", "Website", "Category", "Phone",
	"Rating", "Reviews", "Location", "ACategory",
}

// CSV writes one file per query into Dir.
type CSV struct {
	Dir string

	// Now is the clock used for file names. Nil means time.Now.
	Now func() time.Time
}

// NewCSV creates a CSV sink writing into dir.
func NewCSV(dir string) *CSV {
	return &CSV{Dir: dir}
}

// FileName returns the dataset file name for q at time t:
// <UTC 2006-01-02_15-04-05>_<location>_<term>.csv.
func FileName(t time.Time, q models.Query) string {
	return fmt.Sprintf("%s_%s_%s.csv",
		t.UTC().Format("2006-01-02_15-04-05"),
		fileToken(q.Location),
		fileToken(q.Term),
	)
}

// fileToken turns spaces into '_' and path separators into '-'.
func fileToken(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "-")
	return strings.ReplaceAll(s, `\`, "-")
}

// Save implements Sink.
func (c *CSV) Save(ctx context.Context, q models.Query, records []models.NormalizedRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("sink: create output dir: %w", err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	path := filepath.Join(c.Dir, FileName(now(), q))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("sink: create dataset: %w", err)
	}

	if err := writeRecords(f, records); err != nil {
		f.Close()
		return "", fmt.Errorf("sink: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("sink: close %s: %w", path, err)
	}

	slog.Info("dataset written", "path", path, "records", len(records))
	return path, nil
}

func writeRecords(f *os.File, records []models.NormalizedRecord) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Title, r.Address, r.Website, r.Category, r.Phone,
			r.Rating, r.Reviews, r.Location, r.SearchTerm,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
