package eclio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer encodes keywords in the unformatted layout understood by Reader.
// The first error is sticky; later calls become no-ops returning it.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteInts writes an INTE keyword.
func (w *Writer) WriteInts(name string, values []int32) error {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(data[i*4:], uint32(v))
	}
	return w.writeKeyword(name, TypeInt, len(values), data, 4)
}

// WriteReals writes a REAL keyword.
func (w *Writer) WriteReals(name string, values []float32) error {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return w.writeKeyword(name, TypeReal, len(values), data, 4)
}

// WriteDoubles writes a DOUB keyword.
func (w *Writer) WriteDoubles(name string, values []float64) error {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return w.writeKeyword(name, TypeDouble, len(values), data, 8)
}

// WriteStrings writes a CHAR keyword. Values longer than 8 bytes are
// rejected.
func (w *Writer) WriteStrings(name string, values []string) error {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		if len(v) > 8 {
			return fmt.Errorf("value %q of keyword %s exceeds 8 characters", v, name)
		}
		copy(data[i*8:], padRight(v, 8))
	}
	return w.writeKeyword(name, TypeChar, len(values), data, 8)
}

// WriteMessage writes a MESS keyword, which has no data.
func (w *Writer) WriteMessage(name string) error {
	return w.writeKeyword(name, TypeMessage, 0, nil, 0)
}

func (w *Writer) writeKeyword(name string, typ Type, count int, data []byte, size int) error {
	if w.err != nil {
		return w.err
	}
	if len(name) > nameSize {
		return fmt.Errorf("keyword name %q exceeds %d characters", name, nameSize)
	}

	header := make([]byte, headerSize)
	copy(header, padRight(name, nameSize))
	binary.BigEndian.PutUint32(header[8:12], uint32(count))
	copy(header[12:16], typ)
	w.writeRecord(header)

	if size > 0 {
		step := typ.blockSize() * size
		for start := 0; start < len(data); start += step {
			end := start + step
			if end > len(data) {
				end = len(data)
			}
			w.writeRecord(data[start:end])
		}
	}
	return w.err
}

func (w *Writer) writeRecord(data []byte) {
	if w.err != nil {
		return
	}
	var marker [4]byte
	binary.BigEndian.PutUint32(marker[:], uint32(len(data)))
	for _, chunk := range [][]byte{marker[:], data, marker[:]} {
		if _, err := w.w.Write(chunk); err != nil {
			w.err = err
			return
		}
	}
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
