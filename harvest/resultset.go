package harvest

import "github.com/use-agent/harvest/models"

// DedupKey returns the key two records are considered identical by.
// Title-only: distinct listings sharing a title collapse into one entry.
func DedupKey(r models.NormalizedRecord) string {
	return r.Title
}

// ResultSet holds at most one record per dedup key. A later record with
// an existing key replaces the earlier one in place, so output order is
// the order keys were first seen.
type ResultSet struct {
	index   map[string]int
	records []models.NormalizedRecord
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[string]int)}
}

// Merge folds a batch into the set and returns how many new keys it added.
func (rs *ResultSet) Merge(batch []models.NormalizedRecord) int {
	added := 0
	for _, r := range batch {
		key := DedupKey(r)
		if i, ok := rs.index[key]; ok {
			rs.records[i] = r
			continue
		}
		rs.index[key] = len(rs.records)
		rs.records = append(rs.records, r)
		added++
	}
	return added
}

// Len returns the number of distinct keys.
func (rs *ResultSet) Len() int {
	return len(rs.records)
}

// Records returns a copy of the stored records in first-seen order.
func (rs *ResultSet) Records() []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(rs.records))
	copy(out, rs.records)
	return out
}
