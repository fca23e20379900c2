package eclio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// CompressedSuffixes are tried, in order, by Resolve when the plain file
// is missing. Archived ensembles are often stored compressed.
var CompressedSuffixes = []string{".gz", ".zst", ".lz4"}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc *readCloser) Close() error { return rc.close() }

// Open opens path for reading. gzip, zstd and lz4-framed content is
// detected from its magic bytes and decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, 64*1024)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil

	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil

	case bytes.HasPrefix(magic, lz4Magic):
		return &readCloser{Reader: lz4.NewReader(br), close: f.Close}, nil
	}

	return &readCloser{Reader: br, close: f.Close}, nil
}

// Resolve returns path if it exists, otherwise the first existing
// compressed variant of it.
func Resolve(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	for _, suffix := range CompressedSuffixes {
		if _, err := os.Stat(path + suffix); err == nil {
			return path + suffix, nil
		}
	}
	return "", fmt.Errorf("file not found: %s: %w", path, os.ErrNotExist)
}

// ReadFile opens, decompresses and decodes every keyword of path.
func ReadFile(path string) ([]*Keyword, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	kws, err := ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kws, nil
}
