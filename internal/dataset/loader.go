package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// Source points the loader at one file holding a split.
type Source struct {
	Path string
	// Label is the ground-truth column. Empty means unlabelled data.
	Label string
	// Features restricts and orders the feature columns. Empty keeps every
	// column except the label.
	Features []string
	// Codebook names the dictionary column whose codes the label shares,
	// e.g. the ground-truth column for a file of predicted labels. Empty
	// uses Label.
	Codebook string
}

func (s Source) codebook() string {
	if s.Codebook != "" {
		return s.Codebook
	}
	return s.Label
}

// Loader reads CSV, Parquet and JSON files into Data through an in-memory
// DuckDB connection. Every file read by one loader shares its Dictionary.
type Loader struct {
	db   *sql.DB
	dict *Dictionary
}

func OpenLoader() (*Loader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Loader{db: db, dict: NewDictionary()}, nil
}

// Dictionary returns the category codes assigned so far.
func (l *Loader) Dictionary() *Dictionary {
	return l.dict
}

func (l *Loader) Close() error {
	return l.db.Close()
}

// Load reads src and converts every column to float64. Text values that do
// not parse as numbers become category codes from the loader's dictionary,
// in order of first appearance across every file loaded so far.
func (l *Loader) Load(ctx context.Context, src Source) (*Data, error) {
	if src.Path == "" {
		return nil, errors.New("source path is required")
	}

	rows, err := l.db.QueryContext(ctx, "SELECT * FROM "+scanExpr(src.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", src.Path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	labelIdx := -1
	for i, c := range columns {
		if c == src.Label {
			labelIdx = i
		}
	}
	if src.Label != "" && labelIdx < 0 {
		return nil, fmt.Errorf("label column %q not found in %s", src.Label, src.Path)
	}

	featureIdx, features, err := selectFeatures(columns, labelIdx, src.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	names := make([]string, len(columns))
	copy(names, columns)
	if labelIdx >= 0 {
		names[labelIdx] = src.codebook()
	}
	enc := &encoder{dict: l.dict, columns: names}
	data := &Data{Features: features}

	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", src.Path, err)
		}
		row := make([]float64, len(featureIdx))
		for j, idx := range featureIdx {
			row[j] = enc.value(idx, raw[idx])
		}
		data.X = append(data.X, row)
		if labelIdx >= 0 {
			data.Y = append(data.Y, enc.value(labelIdx, raw[labelIdx]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
	}

	for j, idx := range featureIdx {
		if enc.used(idx) {
			data.setCategories(features[j], l.dict.Labels(names[idx]))
		}
	}
	if labelIdx >= 0 && enc.used(labelIdx) {
		data.setCategories(src.Label, l.dict.Labels(names[labelIdx]))
	}

	return data, nil
}

func scanExpr(path string) string {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet(" + quoted + ")"
	case ".json", ".ndjson", ".jsonl":
		return "read_json_auto(" + quoted + ")"
	default:
		return "read_csv_auto(" + quoted + ")"
	}
}

func selectFeatures(columns []string, labelIdx int, wanted []string) ([]int, []string, error) {
	if len(wanted) == 0 {
		var idx []int
		var names []string
		for i, c := range columns {
			if i == labelIdx {
				continue
			}
			idx = append(idx, i)
			names = append(names, c)
		}
		return idx, names, nil
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	idx := make([]int, 0, len(wanted))
	for _, name := range wanted {
		i, ok := pos[name]
		if !ok {
			return nil, nil, fmt.Errorf("feature column %q not found", name)
		}
		idx = append(idx, i)
	}
	return idx, append([]string(nil), wanted...), nil
}

// encoder turns scanned driver values into float64 cells. columns holds the
// dictionary column of each scanned position.
type encoder struct {
	dict    *Dictionary
	columns []string
	coded   map[int]bool
}

func (e *encoder) used(col int) bool {
	return e.coded[col]
}

func (e *encoder) value(col int, v any) float64 {
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
		return e.code(col, x)
	case []byte:
		return e.value(col, string(x))
	default:
		return toFloat(v)
	}
}

func (e *encoder) code(col int, label string) float64 {
	if e.coded == nil {
		e.coded = make(map[int]bool)
	}
	e.coded[col] = true
	return e.dict.Code(e.columns[col], label)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return float64(x.Unix())
	default:
		return math.NaN()
	}
}

// LoadAll reads every configured split into a Dataset.
func (l *Loader) LoadAll(ctx context.Context, sources map[Split]Source) (*Dataset, error) {
	ds := New()
	for _, split := range Splits() {
		src, ok := sources[split]
		if !ok || src.Path == "" {
			continue
		}
		data, err := l.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", split, err)
		}
		if err := ds.Set(split, data); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
