package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/eclio"
	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

const millisPerDay = 86_400_000

// FileReader is a Reader over a unified ECLIPSE summary case: a .SMSPEC
// specification and its .UNSMRY data file.
type FileReader struct {
	SpecPath string
	DataPath string

	start  models.Instant
	grid   Grid
	nodes  []Node
	keys   []string
	byKey  map[string]int // first node index per key
	steps  [][]float64    // one row of PARAMS per report/ministep
	dates  []models.Instant
	logger zerolog.Logger
}

// OpenFile decodes the summary case at path. path may name the .SMSPEC
// file, the .UNSMRY file or the case stem.
func OpenFile(ctx context.Context, path string, logger zerolog.Logger) (*FileReader, error) {
	specPath, dataPath, err := resolveCase(path)
	if err != nil {
		return nil, err
	}

	r := &FileReader{
		SpecPath: specPath,
		DataPath: dataPath,
		byKey:    make(map[string]int),
		logger:   logger.With().Str("component", "summary-reader").Logger(),
	}

	start := time.Now()
	if err := r.readSpec(); err != nil {
		return nil, err
	}
	if err := r.readData(ctx); err != nil {
		return nil, err
	}
	if err := r.buildTimeAxis(); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("spec", specPath).
		Int("vectors", len(r.keys)).
		Int("steps", len(r.steps)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Summary case loaded")
	return r, nil
}

// resolveCase finds the specification and data files of a case. The case
// of the extension given in path is tried first.
func resolveCase(path string) (string, string, error) {
	ext := filepath.Ext(path)
	stem := path
	switch strings.ToUpper(ext) {
	case ".SMSPEC", ".UNSMRY", ".DATA":
		stem = strings.TrimSuffix(path, ext)
	default:
		for _, suffix := range eclio.CompressedSuffixes {
			if strings.HasSuffix(path, suffix) {
				return resolveCase(strings.TrimSuffix(path, suffix))
			}
		}
	}

	exts := [][2]string{{".SMSPEC", ".UNSMRY"}, {".smspec", ".unsmry"}}
	if ext != "" && ext == strings.ToLower(ext) {
		exts[0], exts[1] = exts[1], exts[0]
	}

	var lastErr error
	for _, e := range exts {
		spec, err := eclio.Resolve(stem + e[0])
		if err != nil {
			lastErr = err
			continue
		}
		data, err := eclio.Resolve(stem + e[1])
		if err != nil {
			return "", "", fmt.Errorf("summary data for %s: %w", spec, err)
		}
		return spec, data, nil
	}
	return "", "", lastErr
}

func (r *FileReader) readSpec() error {
	kws, err := eclio.ReadFile(r.SpecPath)
	if err != nil {
		return err
	}

	var (
		dimens   []int32
		keywords []string
		wgnames  []string
		nums     []int32
		units    []string
		startdat []int32
	)
	for _, kw := range kws {
		switch kw.Name {
		case "DIMENS":
			dimens = kw.Ints
		case "KEYWORDS":
			keywords = kw.Strings
		case "WGNAMES", "NAMES":
			wgnames = kw.Strings
		case "NUMS":
			nums = kw.Ints
		case "UNITS":
			units = kw.Strings
		case "STARTDAT":
			startdat = kw.Ints
		}
	}

	if len(dimens) < 4 {
		return fmt.Errorf("%w: %s: missing DIMENS", eclio.ErrMalformed, r.SpecPath)
	}
	nlist := int(dimens[0])
	if len(keywords) != nlist {
		return fmt.Errorf("%w: %s: DIMENS lists %d vectors, KEYWORDS has %d", eclio.ErrMalformed, r.SpecPath, nlist, len(keywords))
	}
	r.grid = Grid{NX: int(dimens[1]), NY: int(dimens[2]), NZ: int(dimens[3])}

	if r.start, err = parseStartDate(startdat); err != nil {
		return fmt.Errorf("%s: %w", r.SpecPath, err)
	}

	skipped := 0
	r.nodes = make([]Node, nlist)
	for i, keyword := range keywords {
		n := Node{Index: i, Keyword: keyword, Type: Classify(keyword)}
		if i < len(wgnames) {
			n.WGName = wgnames[i]
		}
		if i < len(nums) {
			n.Num = int(nums[i])
		}
		if i < len(units) {
			n.Unit = units[i]
		}
		r.nodes[i] = n

		key, ok := n.Key(r.grid)
		if !ok {
			skipped++
			continue
		}
		if _, dup := r.byKey[key]; dup {
			r.logger.Debug().Str("key", key).Int("index", i).Msg("Duplicate summary key in specification")
		} else {
			r.byKey[key] = i
		}
		r.keys = append(r.keys, key)
	}

	if skipped > 0 {
		r.logger.Debug().Int("skipped", skipped).Msg("Skipped non-addressable summary nodes")
	}
	return nil
}

// parseStartDate decodes STARTDAT: day, month, year and optionally hour,
// minute and microseconds (seconds included).
func parseStartDate(v []int32) (models.Instant, error) {
	if len(v) < 3 {
		return models.Instant{}, fmt.Errorf("%w: missing STARTDAT", eclio.ErrMalformed)
	}
	start := models.Date(int(v[2]), int(v[1]), int(v[0]))
	if len(v) >= 6 {
		start.Hour = int(v[3])
		start.Minute = int(v[4])
		us := int(v[5])
		start.Second = us / 1_000_000
		start.Millisecond = (us % 1_000_000) / 1000
	}
	if !start.Valid() {
		return models.Instant{}, fmt.Errorf("%w: invalid STARTDAT %v", eclio.ErrMalformed, v)
	}
	return start, nil
}

func (r *FileReader) readData(ctx context.Context) error {
	rc, err := eclio.Open(r.DataPath)
	if err != nil {
		return err
	}
	defer rc.Close()

	nlist := len(r.nodes)
	kr := eclio.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		kw, err := kr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", r.DataPath, err)
		}
		if kw.Name != "PARAMS" {
			continue
		}

		row := make([]float64, 0, nlist)
		switch kw.Type {
		case eclio.TypeReal:
			for _, v := range kw.Reals {
				row = append(row, float64(v))
			}
		case eclio.TypeDouble:
			row = append(row, kw.Doubles...)
		default:
			return fmt.Errorf("%w: %s: PARAMS of type %s", eclio.ErrMalformed, r.DataPath, kw.Type)
		}
		if len(row) != nlist {
			return fmt.Errorf("%w: %s: PARAMS has %d values, expected %d", eclio.ErrMalformed, r.DataPath, len(row), nlist)
		}
		r.steps = append(r.steps, row)
	}
}

// buildTimeAxis derives the timestamps from the TIME vector (days), or
// from HOURS when TIME is absent.
func (r *FileReader) buildTimeAxis() error {
	idx, scale := -1, 0.0
	for _, n := range r.nodes {
		if n.Type != VarMisc {
			continue
		}
		if n.Keyword == "TIME" {
			idx, scale = n.Index, millisPerDay
			break
		}
		if n.Keyword == "HOURS" && idx < 0 {
			idx, scale = n.Index, millisPerDay/24
		}
	}
	if idx < 0 && len(r.steps) > 0 {
		return fmt.Errorf("%w: %s: no TIME vector", eclio.ErrMalformed, r.SpecPath)
	}

	r.dates = make([]models.Instant, len(r.steps))
	for i, row := range r.steps {
		ms := int64(math.Round(row[idx] * scale))
		r.dates[i] = r.start.AddMillis(ms)
	}
	return nil
}

// StartDate returns the simulation start.
func (r *FileReader) StartDate() models.Instant {
	return r.start
}

// ListColumns returns every addressable key in specification order,
// duplicates included.
func (r *FileReader) ListColumns() []string {
	return append([]string(nil), r.keys...)
}

func (r *FileReader) Timestamps() []models.Instant {
	return r.dates
}

func (r *FileReader) SampleVector(name string) ([]float64, error) {
	idx, ok := r.byKey[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVector, name)
	}
	return r.column(idx), nil
}

func (r *FileReader) StaticMetadata(name string) (models.ColumnMeta, error) {
	idx, ok := r.byKey[name]
	if !ok {
		return models.ColumnMeta{}, fmt.Errorf("%w: %s", ErrUnknownVector, name)
	}
	return r.nodes[idx].Meta(), nil
}

// Vectors returns one vector per addressable node, so duplicate keys
// keep their own samples and units.
func (r *FileReader) Vectors() ([]models.Vector, error) {
	out := make([]models.Vector, 0, len(r.keys))
	for _, n := range r.nodes {
		key, ok := n.Key(r.grid)
		if !ok {
			continue
		}
		meta := n.Meta()
		out = append(out, models.Vector{Name: key, Samples: r.column(n.Index), Meta: &meta})
	}
	return out, nil
}

func (r *FileReader) column(idx int) []float64 {
	out := make([]float64, len(r.steps))
	for i, row := range r.steps {
		out[i] = row[idx]
	}
	return out
}
