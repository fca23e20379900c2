package models

// Reserved column names. No summary vector may use them.
const (
	DateColumn = "DATE"
	RealColumn = "REAL"
)

// ColumnMeta is the static description of one summary vector.
// It is attached to every non-date column, both on the column itself and
// in the table-level mapping, and is never re-derived after a table is built.
type ColumnMeta struct {
	Unit         string `json:"unit"`
	IsTotal      bool   `json:"is_total"`
	IsRate       bool   `json:"is_rate"`
	IsHistorical bool   `json:"is_historical"`
	Keyword      string `json:"keyword"`
	WGName       string `json:"wgname"`
	// Num is only present for keyword classes that carry a numeric
	// qualifier (regions, blocks, completions, segments, aquifers).
	Num *int `json:"get_num,omitempty"`
}

// Equal reports whether two records describe the same vector.
func (m ColumnMeta) Equal(o ColumnMeta) bool {
	if m.Unit != o.Unit ||
		m.IsTotal != o.IsTotal ||
		m.IsRate != o.IsRate ||
		m.IsHistorical != o.IsHistorical ||
		m.Keyword != o.Keyword ||
		m.WGName != o.WGName {
		return false
	}
	if m.Num == nil || o.Num == nil {
		return m.Num == nil && o.Num == nil
	}
	return *m.Num == *o.Num
}

// NumValue returns the numeric qualifier and whether it is set.
func (m ColumnMeta) NumValue() (int, bool) {
	if m.Num == nil {
		return 0, false
	}
	return *m.Num, true
}

// WithNum returns a copy of m with the numeric qualifier set to n.
func (m ColumnMeta) WithNum(n int) ColumnMeta {
	m.Num = &n
	return m
}

// Vector is one named sample series as delivered by a summary source,
// together with its metadata record. Meta is nil when the enumeration that
// produced the vector carried no metadata.
type Vector struct {
	Name    string
	Samples []float64
	Meta    *ColumnMeta
}
