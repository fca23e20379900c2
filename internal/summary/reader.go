// Package summary exposes simulator summary sources as named sample
// vectors with a shared time axis and per-vector metadata.
package summary

import (
	"errors"
	"fmt"

	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

var (
	// ErrNoMetadata is returned by StaticMetadata for vectors the source
	// knows by name only.
	ErrNoMetadata = errors.New("no metadata for vector")

	// ErrUnknownVector is returned for names the source does not list.
	ErrUnknownVector = errors.New("unknown summary vector")
)

// Reader is a decoded summary source.
//
// ListColumns may contain the same name more than once when the source
// enumerates vectors in more than one way; consumers reconcile the
// duplicates.
type Reader interface {
	ListColumns() []string
	Timestamps() []models.Instant
	SampleVector(name string) ([]float64, error)
	StaticMetadata(name string) (models.ColumnMeta, error)
}

// VectorLister is implemented by readers that can return every vector
// occurrence with its own samples and metadata, including duplicates that
// would be indistinguishable through the name-based Reader methods.
type VectorLister interface {
	Vectors() ([]models.Vector, error)
}

// MemReader is a Reader over vectors held in memory.
type MemReader struct {
	Dates []models.Instant
	Vecs  []models.Vector
}

// NewMemReader returns a MemReader over dates and vectors.
func NewMemReader(dates []models.Instant, vectors ...models.Vector) *MemReader {
	return &MemReader{Dates: dates, Vecs: vectors}
}

func (m *MemReader) ListColumns() []string {
	names := make([]string, len(m.Vecs))
	for i, v := range m.Vecs {
		names[i] = v.Name
	}
	return names
}

func (m *MemReader) Timestamps() []models.Instant {
	return m.Dates
}

func (m *MemReader) SampleVector(name string) ([]float64, error) {
	for _, v := range m.Vecs {
		if v.Name == name {
			return v.Samples, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVector, name)
}

// StaticMetadata returns the first metadata record known for name.
func (m *MemReader) StaticMetadata(name string) (models.ColumnMeta, error) {
	found := false
	for _, v := range m.Vecs {
		if v.Name != name {
			continue
		}
		found = true
		if v.Meta != nil {
			return *v.Meta, nil
		}
	}
	if !found {
		return models.ColumnMeta{}, fmt.Errorf("%w: %s", ErrUnknownVector, name)
	}
	return models.ColumnMeta{}, fmt.Errorf("%w: %s", ErrNoMetadata, name)
}

func (m *MemReader) Vectors() ([]models.Vector, error) {
	return m.Vecs, nil
}
