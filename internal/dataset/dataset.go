package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownSplit   = errors.New("unknown split")
	ErrSplitNotLoaded = errors.New("split not loaded")
	ErrShape          = errors.New("inconsistent data shape")
)

// Split names one partition of a dataset.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits returns the known splits in canonical order.
func Splits() []Split {
	return []Split{SplitTrain, SplitVal, SplitTest}
}

func (s Split) IsValid() bool {
	switch s {
	case SplitTrain, SplitVal, SplitTest:
		return true
	}
	return false
}

func (s Split) String() string {
	return string(s)
}

// ParseSplit converts a split name. An empty string selects the train split.
func ParseSplit(name string) (Split, error) {
	if name == "" {
		return SplitTrain, nil
	}
	s := Split(name)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, name)
	}
	return s, nil
}

// Data is one split in column-labelled row-major form.
// Missing values are stored as NaN.
type Data struct {
	Features []string    `json:"features"`
	X        [][]float64 `json:"x"`
	Y        []float64   `json:"y,omitempty"`

	// Categories maps a feature, or the label column, to the labels its
	// integer codes stand for.
	Categories map[string][]string `json:"categories,omitempty"`
}

func (d *Data) setCategories(column string, labels []string) {
	if d.Categories == nil {
		d.Categories = make(map[string][]string)
	}
	d.Categories[column] = labels
}

func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.X)
}

func (d *Data) HasLabels() bool {
	return d != nil && len(d.Y) > 0
}

// FeatureIndex returns the column position of name or -1.
func (d *Data) FeatureIndex(name string) int {
	for i, f := range d.Features {
		if f == name {
			return i
		}
	}
	return -1
}

// Column copies one feature column out of the row matrix.
func (d *Data) Column(name string) ([]float64, bool) {
	idx := d.FeatureIndex(name)
	if idx < 0 {
		return nil, false
	}
	col := make([]float64, len(d.X))
	for i, row := range d.X {
		if idx < len(row) {
			col[i] = row[idx]
		} else {
			col[i] = math.NaN()
		}
	}
	return col, true
}

// Validate checks that every row has one value per feature and that labels,
// when present, cover every row.
func (d *Data) Validate() error {
	for i, row := range d.X {
		if len(row) != len(d.Features) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(row), len(d.Features))
		}
	}
	if len(d.Y) > 0 && len(d.Y) != len(d.X) {
		return fmt.Errorf("%w: %d labels for %d rows", ErrShape, len(d.Y), len(d.X))
	}
	return nil
}

// Sample is a single streamed item fed to update mode.
type Sample struct {
	X          []float64 `json:"x"`
	Y          float64   `json:"y"`
	Prediction float64   `json:"prediction"`
}

// Dataset holds the loaded splits of one analysis session.
type Dataset struct {
	splits map[Split]*Data
}

func New() *Dataset {
	return &Dataset{splits: make(map[Split]*Data)}
}

// Set stores data under split after validating its shape.
func (ds *Dataset) Set(split Split, data *Data) error {
	if !split.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	if data == nil {
		return fmt.Errorf("split %s: nil data", split)
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("split %s: %w", split, err)
	}
	ds.splits[split] = data
	return nil
}

// Get returns the data of split. Unknown names fail with ErrUnknownSplit,
// known but absent splits with ErrSplitNotLoaded.
func (ds *Dataset) Get(split Split) (*Data, error) {
	if !split.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	data, ok := ds.splits[split]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSplitNotLoaded, split)
	}
	return data, nil
}

// Loaded lists the splits that hold data.
func (ds *Dataset) Loaded() []Split {
	out := make([]Split, 0, len(ds.splits))
	for s := range ds.splits {
		out = append(out, s)
	}
	order := map[Split]int{SplitTrain: 0, SplitVal: 1, SplitTest: 2}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
