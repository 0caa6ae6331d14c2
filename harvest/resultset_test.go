package harvest

import (
	"reflect"
	"testing"

	"github.com/use-agent/harvest/models"
)

func TestResultSet_MergeIsIdempotent(t *testing.T) {
	batch := NormalizeAll([]models.RawRecord{
		{Title: "Sri Hardware", Rating: "4.1"},
		{Title: "Tool Point", Rating: "3.9"},
	}, testQuery)

	once := NewResultSet()
	once.Merge(batch)

	twice := NewResultSet()
	twice.Merge(batch)
	if added := twice.Merge(batch); added != 0 {
		t.Errorf("second merge added %d keys, want 0", added)
	}

	if !reflect.DeepEqual(once.Records(), twice.Records()) {
		t.Errorf("merging twice changed the set:\n once: %+v\ntwice: %+v", once.Records(), twice.Records())
	}
}

func TestResultSet_LastSeenWins(t *testing.T) {
	rs := NewResultSet()
	rs.Merge([]models.NormalizedRecord{{Title: "A", Rating: "4.0"}})
	rs.Merge([]models.NormalizedRecord{{Title: "A", Rating: "4.5"}})

	got := rs.Records()
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Rating != "4.5" {
		t.Errorf("rating = %q, want %q", got[0].Rating, "4.5")
	}
}

func TestResultSet_KeepsFirstSeenOrder(t *testing.T) {
	rs := NewResultSet()
	rs.Merge([]models.NormalizedRecord{{Title: "A"}, {Title: "B"}})
	rs.Merge([]models.NormalizedRecord{{Title: "C"}, {Title: "A", Phone: "080 2345 6789"}})

	var titles []string
	for _, r := range rs.Records() {
		titles = append(titles, r.Title)
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("order = %v, want %v", titles, want)
	}
	if rs.Records()[0].Phone != "080 2345 6789" {
		t.Errorf("overwrite did not land in place: %+v", rs.Records()[0])
	}
}

func TestResultSet_RecordsReturnsCopy(t *testing.T) {
	rs := NewResultSet()
	rs.Merge([]models.NormalizedRecord{{Title: "A"}})

	out := rs.Records()
	out[0].Title = "mutated"

	if rs.Records()[0].Title != "A" {
		t.Error("caller mutation leaked into the set")
	}
}

func TestResultSet_SameTitleCollapses(t *testing.T) {
	rs := NewResultSet()
	rs.Merge([]models.NormalizedRecord{
		{Title: "Hardware Store", Address: "1 MG Road"},
		{Title: "Hardware Store", Address: "9 Church Street"},
	})

	if rs.Len() != 1 {
		t.Errorf("len = %d, want 1 (title is the only dedup key)", rs.Len())
	}
}
