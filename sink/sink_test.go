package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/use-agent/harvest/models"
)

var testQuery = models.Query{Location: "Austin Town", Term: "drill machine"}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 17, 4, 5, 0, time.FixedZone("IST", 5*3600+1800))
	tests := []struct {
		name string
		q    models.Query
		want string
	}{
		{"spaces", testQuery, "2024-03-09_11-34-05_Austin_Town_drill_machine.csv"},
		{"separators", models.Query{Location: "Anandnagar/Hebbal", Term: `a\b`}, "2024-03-09_11-34-05_Anandnagar-Hebbal_a-b.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(at, tt.q); got != tt.want {
				t.Errorf("FileName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSV_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data_scraped")
	c := NewCSV(dir)
	c.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	records := []models.NormalizedRecord{
		{Title: "Sri Hardware, Tools", Address: "Domlur Layout", Phone: "080 2535 1234", Rating: "4.5", Reviews: "1,024", Location: "Austin Town", SearchTerm: "drill machine"},
		{Title: "Quote \"Store\"", Location: "Austin Town", SearchTerm: "drill machine"},
	}

	path, err := c.Save(context.Background(), testQuery, records)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "2024-01-02_03-04-05_Austin_Town_drill_machine.csv"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if !reflect.DeepEqual(rows[0], csvHeader) {
		t.Errorf("header = %q", rows[0])
	}
	want := []string{"Sri Hardware, Tools", "Domlur Layout", "", "", "080 2535 1234", "4.5", "1,024", "Austin Town", "drill machine"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row 1 = %q, want %q", rows[1], want)
	}
	if rows[2][0] != `Quote "Store"` {
		t.Errorf("quoted title = %q", rows[2][0])
	}
}

func TestCSV_SaveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	if _, err := NewCSV(dir).Save(ctx, testQuery, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

type stubSink struct {
	ref   string
	err   error
	calls int
}

func (s *stubSink) Save(_ context.Context, _ models.Query, _ []models.NormalizedRecord) (string, error) {
	s.calls++
	return s.ref, s.err
}

func TestMulti_Save(t *testing.T) {
	t.Run("all succeed", func(t *testing.T) {
		a, b := &stubSink{ref: "a.csv"}, &stubSink{ref: "db.listings"}
		ref, err := Multi{a, b}.Save(context.Background(), testQuery, nil)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if ref != "a.csv" {
			t.Errorf("ref = %q, want first sink's", ref)
		}
		if a.calls != 1 || b.calls != 1 {
			t.Errorf("calls = %d, %d", a.calls, b.calls)
		}
	})

	t.Run("one fails", func(t *testing.T) {
		boom := errors.New("boom")
		a, b := &stubSink{ref: "a.csv"}, &stubSink{err: boom}
		ref, err := Multi{a, b}.Save(context.Background(), testQuery, nil)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
		var he *models.HarvestError
		if !errors.As(err, &he) || he.Code != models.ErrCodePersist {
			t.Errorf("err = %v, want PERSIST_FAILED", err)
		}
		if ref != "a.csv" {
			t.Errorf("ref = %q, successful sink's reference should survive", ref)
		}
	})
}

func TestUpsertFilter(t *testing.T) {
	r := models.NormalizedRecord{Title: "Sri Hardware", Location: "Domlur", SearchTerm: "drill machine", Phone: "ignored"}
	got := upsertFilter(r)
	if len(got) != 3 || got["title"] != "Sri Hardware" || got["location"] != "Domlur" || got["acategory"] != "drill machine" {
		t.Errorf("filter = %v", got)
	}
}
