// Package eclio reads and writes the Fortran-unformatted, big-endian
// keyword files produced by ECLIPSE-compatible reservoir simulators.
//
// A file is a sequence of keywords. Each keyword is a 16-byte header
// record (8-char name, int32 element count, 4-char type) followed by
// zero or more data records holding at most one block of elements. Every
// record is framed by its byte length as int32 on both sides.
package eclio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for data that does not follow the keyword
// file layout: bad record framing, unknown types, truncated blocks.
var ErrMalformed = errors.New("malformed eclipse binary data")

// Type is the 4-character element type tag of a keyword.
type Type string

const (
	TypeInt     Type = "INTE"
	TypeReal    Type = "REAL"
	TypeDouble  Type = "DOUB"
	TypeLogical Type = "LOGI"
	TypeChar    Type = "CHAR"
	TypeMessage Type = "MESS"
)

const (
	headerSize       = 16
	nameSize         = 8
	numericBlockSize = 1000
	charBlockSize    = 105
)

// elementSize returns the on-disk width of one element of t.
// Variable width strings use the C0nn tag where nn is the width.
func (t Type) elementSize() (int, error) {
	switch t {
	case TypeInt, TypeReal, TypeLogical:
		return 4, nil
	case TypeDouble:
		return 8, nil
	case TypeChar:
		return 8, nil
	case TypeMessage:
		return 0, nil
	}
	if strings.HasPrefix(string(t), "C0") {
		n, err := strconv.Atoi(string(t[1:]))
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown element type %q", ErrMalformed, string(t))
}

func (t Type) blockSize() int {
	if t == TypeChar || strings.HasPrefix(string(t), "C0") {
		return charBlockSize
	}
	return numericBlockSize
}

func (t Type) isString() bool {
	return t == TypeChar || strings.HasPrefix(string(t), "C0")
}

// Keyword is one decoded keyword. Exactly one of the value slices is
// populated, selected by Type.
type Keyword struct {
	Name    string
	Type    Type
	Ints    []int32
	Reals   []float32
	Doubles []float64
	Bools   []bool
	Strings []string
}

// Len returns the number of elements in the keyword.
func (k *Keyword) Len() int {
	switch {
	case k.Type == TypeInt:
		return len(k.Ints)
	case k.Type == TypeReal:
		return len(k.Reals)
	case k.Type == TypeDouble:
		return len(k.Doubles)
	case k.Type == TypeLogical:
		return len(k.Bools)
	case k.Type.isString():
		return len(k.Strings)
	}
	return 0
}
