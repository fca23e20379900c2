package table

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/goccy/go-json"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

// MetadataKey is the schema and field metadata key holding the JSON
// encoded vector metadata.
const MetadataKey = "smry_meta"

// Metadata is the table-level mapping from column name to metadata
// record. It encodes as a JSON object whose keys keep column order.
type Metadata struct {
	names   []string
	records map[string]models.ColumnMeta
}

// NewMetadata returns an empty mapping.
func NewMetadata() *Metadata {
	return &Metadata{records: make(map[string]models.ColumnMeta)}
}

// Add records meta for name unless name is already present. It reports
// whether the record was added.
func (m *Metadata) Add(name string, meta models.ColumnMeta) bool {
	if _, ok := m.records[name]; ok {
		return false
	}
	m.names = append(m.names, name)
	m.records[name] = meta
	return true
}

// Get returns the record for name.
func (m *Metadata) Get(name string) (models.ColumnMeta, bool) {
	meta, ok := m.records[name]
	return meta, ok
}

// Names returns the column names in insertion order.
func (m *Metadata) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *Metadata) Len() int {
	return len(m.names)
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.records[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata is not a JSON object")
	}

	m.names = nil
	m.records = make(map[string]models.ColumnMeta)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected metadata token %v", tok)
		}
		var meta models.ColumnMeta
		if err := dec.Decode(&meta); err != nil {
			return fmt.Errorf("metadata for %s: %w", name, err)
		}
		m.Add(name, meta)
	}
	_, err = dec.Token()
	return err
}

func encodeColumnMeta(meta models.ColumnMeta) (arrow.Metadata, error) {
	blob, err := json.Marshal(meta)
	if err != nil {
		return arrow.Metadata{}, err
	}
	return arrow.NewMetadata([]string{MetadataKey}, []string{string(blob)}), nil
}

// ColumnMeta decodes the metadata record attached to f. It reports false
// when f carries none, as for the DATE and REAL columns.
func ColumnMeta(f arrow.Field) (models.ColumnMeta, bool, error) {
	idx := f.Metadata.FindKey(MetadataKey)
	if idx < 0 {
		return models.ColumnMeta{}, false, nil
	}
	var meta models.ColumnMeta
	if err := json.Unmarshal([]byte(f.Metadata.Values()[idx]), &meta); err != nil {
		return models.ColumnMeta{}, false, fmt.Errorf("%w: column %s metadata: %v", ErrDecode, f.Name, err)
	}
	return meta, true, nil
}

// TableMeta decodes the table-level mapping of schema. A schema without
// one yields an empty mapping.
func TableMeta(schema *arrow.Schema) (*Metadata, error) {
	md := schema.Metadata()
	idx := md.FindKey(MetadataKey)
	if idx < 0 {
		return NewMetadata(), nil
	}
	meta := NewMetadata()
	if err := json.Unmarshal([]byte(md.Values()[idx]), meta); err != nil {
		return nil, fmt.Errorf("%w: table metadata: %v", ErrDecode, err)
	}
	return meta, nil
}

// withTableMeta returns md with the MetadataKey entry set to meta,
// keeping every other key.
func withTableMeta(md arrow.Metadata, meta *Metadata) (arrow.Metadata, error) {
	blob, err := json.Marshal(meta)
	if err != nil {
		return arrow.Metadata{}, err
	}
	keys := []string{MetadataKey}
	values := []string{string(blob)}
	for i, k := range md.Keys() {
		if k == MetadataKey {
			continue
		}
		keys = append(keys, k)
		values = append(values, md.Values()[i])
	}
	return arrow.NewMetadata(keys, values), nil
}
