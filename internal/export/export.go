// Package export writes a system snapshot to a directory of CSV and JSON
// files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
)

const (
	ValuesFile = "metric_values.csv"
	InfoFile   = "metric_info.json"
	ListFile   = "metric_list.json"
	ModelFile  = "model_info.json"

	CertificateInfoFile   = "certificate_info.json"
	CertificateValuesFile = "certificate_values.json"

	dateColumn = "date"
)

// Exporter appends metric values to a CSV history and rewrites the
// metadata documents on every export.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes snap to the export directory. The CSV header is written only
// when the file is created; later rows follow the existing header.
func (e *Exporter) Export(snap *aisystem.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	if err := e.appendValues(snap); err != nil {
		return err
	}

	docs := []struct {
		name string
		v    any
	}{
		{InfoFile, snap.Info.Metrics},
		{ListFile, snap.Info.Categories},
		{ModelFile, snap.Model},
		{CertificateInfoFile, snap.CertificateInfo},
		{CertificateValuesFile, certificateValues{Date: snap.Timestamp, Certificates: snap.Certificates}},
	}
	for _, d := range docs {
		if err := writeJSON(filepath.Join(e.dir, d.name), d.v); err != nil {
			return fmt.Errorf("failed to write %s: %w", d.name, err)
		}
	}

	e.logger.Info("metrics exported",
		"dir", e.dir,
		"system", snap.System,
		"metrics", len(snap.Info.Order),
	)
	return nil
}

// certificateValues holds the certificate outcomes of the latest export.
type certificateValues struct {
	Date         string                       `json:"date"`
	Certificates map[string]certificate.Value `json:"certificates"`
}

func (e *Exporter) appendValues(snap *aisystem.Snapshot) error {
	path := filepath.Join(e.dir, ValuesFile)

	header, err := readHeader(path)
	if err != nil {
		return err
	}
	created := header == nil
	if created {
		header = append([]string{dateColumn}, snap.Info.Order...)
	}

	cells := make(map[string]string, len(snap.Flat)+1)
	cells[dateColumn] = snap.Timestamp
	for _, v := range snap.Flat {
		cell, err := formatCell(v.Value)
		if err != nil {
			return fmt.Errorf("failed to format %s: %w", v.Metric, err)
		}
		cells[v.Metric] = cell
	}

	row := make([]string, len(header))
	for i, col := range header {
		row[i] = cells[col]
		delete(cells, col)
	}
	if len(cells) > 0 {
		e.logger.Warn("metrics missing from existing CSV header are not exported",
			"path", path,
			"count", len(cells),
		)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if created {
		if err := w.Write(header); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Write(row); err != nil {
		file.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readHeader returns nil when the file does not exist or is empty.
func readHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

// formatCell renders scalars directly and everything else as JSON. Nil is
// an empty cell.
func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return x, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func writeJSON(path string, v any) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
