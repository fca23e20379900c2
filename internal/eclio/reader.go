package eclio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Reader decodes keywords sequentially from an unformatted file.
type Reader struct {
	r      *bufio.Reader
	offset int64
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes the next keyword. It returns io.EOF when the input ends
// cleanly on a keyword boundary.
func (r *Reader) Next() (*Keyword, error) {
	header, err := r.readRecord()
	if err != nil {
		return nil, err
	}
	if len(header) != headerSize {
		return nil, fmt.Errorf("%w: keyword header at offset %d is %d bytes", ErrMalformed, r.offset, len(header))
	}

	kw := &Keyword{
		Name: strings.TrimRight(string(header[:nameSize]), " "),
		Type: Type(header[12:16]),
	}
	count := int(int32(binary.BigEndian.Uint32(header[8:12])))
	if count < 0 {
		return nil, fmt.Errorf("%w: keyword %s has negative length %d", ErrMalformed, kw.Name, count)
	}

	size, err := kw.Type.elementSize()
	if err != nil {
		return nil, fmt.Errorf("keyword %s: %w", kw.Name, err)
	}
	if size == 0 || count == 0 {
		return kw, nil
	}

	if err := r.readData(kw, count, size); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: keyword %s truncated", ErrMalformed, kw.Name)
		}
		return nil, err
	}
	return kw, nil
}

// ReadAll decodes every keyword in r.
func ReadAll(r io.Reader) ([]*Keyword, error) {
	kr := NewReader(r)
	var out []*Keyword
	for {
		kw, err := kr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, kw)
	}
}

func (r *Reader) readData(kw *Keyword, count, size int) error {
	block := kw.Type.blockSize()
	remaining := count

	for remaining > 0 {
		data, err := r.readRecord()
		if err != nil {
			return err
		}
		n := len(data) / size
		if len(data)%size != 0 || n == 0 || n > block || n > remaining {
			return fmt.Errorf("%w: keyword %s has a %d byte data record", ErrMalformed, kw.Name, len(data))
		}
		decode(kw, data, n, size)
		remaining -= n
	}
	return nil
}

func decode(kw *Keyword, data []byte, n, size int) {
	switch {
	case kw.Type == TypeInt:
		for i := 0; i < n; i++ {
			kw.Ints = append(kw.Ints, int32(binary.BigEndian.Uint32(data[i*4:])))
		}
	case kw.Type == TypeReal:
		for i := 0; i < n; i++ {
			kw.Reals = append(kw.Reals, math.Float32frombits(binary.BigEndian.Uint32(data[i*4:])))
		}
	case kw.Type == TypeDouble:
		for i := 0; i < n; i++ {
			kw.Doubles = append(kw.Doubles, math.Float64frombits(binary.BigEndian.Uint64(data[i*8:])))
		}
	case kw.Type == TypeLogical:
		for i := 0; i < n; i++ {
			kw.Bools = append(kw.Bools, binary.BigEndian.Uint32(data[i*4:]) != 0)
		}
	case kw.Type.isString():
		for i := 0; i < n; i++ {
			kw.Strings = append(kw.Strings, strings.TrimRight(string(data[i*size:(i+1)*size]), " "))
		}
	}
}

// readRecord reads one length-framed record.
func (r *Reader) readRecord() ([]byte, error) {
	var marker [4]byte
	if _, err := io.ReadFull(r.r, marker[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated record marker at offset %d", ErrMalformed, r.offset)
		}
		return nil, err
	}
	head := int32(binary.BigEndian.Uint32(marker[:]))
	if head < 0 {
		return nil, fmt.Errorf("%w: negative record length at offset %d", ErrMalformed, r.offset)
	}

	data := make([]byte, head)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("%w: record at offset %d truncated", ErrMalformed, r.offset)
	}
	if _, err := io.ReadFull(r.r, marker[:]); err != nil {
		return nil, fmt.Errorf("%w: missing trailing marker at offset %d", ErrMalformed, r.offset)
	}
	if tail := int32(binary.BigEndian.Uint32(marker[:])); tail != head {
		return nil, fmt.Errorf("%w: record markers disagree at offset %d (%d != %d)", ErrMalformed, r.offset, head, tail)
	}

	r.offset += int64(head) + 8
	return data, nil
}
