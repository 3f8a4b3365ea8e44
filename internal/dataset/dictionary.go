package dataset

import "sync"

// Dictionary assigns integer codes to the text categories of each column.
// A code, once assigned, never changes, so every file read through the
// same dictionary encodes a category identically.
type Dictionary struct {
	mu     sync.RWMutex
	codes  map[string]map[string]int
	labels map[string][]string
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		codes:  make(map[string]map[string]int),
		labels: make(map[string][]string),
	}
}

// Code returns the code of label in column, assigning the next free code to
// an unseen label.
func (d *Dictionary) Code(column, label string) float64 {
	if c, ok := d.Lookup(column, label); ok {
		return c
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	codes := d.codes[column]
	if codes == nil {
		codes = make(map[string]int)
		d.codes[column] = codes
	}
	c, ok := codes[label]
	if !ok {
		c = len(d.labels[column])
		codes[label] = c
		d.labels[column] = append(d.labels[column], label)
	}
	return float64(c)
}

// Lookup returns the code of a label without assigning one.
func (d *Dictionary) Lookup(column, label string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.codes[column][label]
	return float64(c), ok
}

// Labels returns the categories of column indexed by code.
func (d *Dictionary) Labels(column string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.labels[column]...)
}

// Columns returns the number of columns holding text categories.
func (d *Dictionary) Columns() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.labels)
}
