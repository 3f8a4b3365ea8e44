package dataset

import (
	"errors"
	"fmt"
)

// OutputType is a prediction capability a model declares.
type OutputType string

const (
	OutputPredict      OutputType = "predict"
	OutputPredictProba OutputType = "predict_proba"
	OutputGenerateText OutputType = "generate_text"
)

func (o OutputType) IsValid() bool {
	switch o {
	case OutputPredict, OutputPredictProba, OutputGenerateText:
		return true
	}
	return false
}

// Model describes the model under evaluation. Only descriptor fields are
// kept; the model itself is never invoked.
type Model struct {
	Name        string
	DisplayName string
	ModelClass  string
	Description string
	Adaptive    bool
	OutputTypes []OutputType
}

// ModelInfo is the exported model document.
type ModelInfo struct {
	ID          string       `json:"id"`
	Model       string       `json:"model"`
	Adaptive    bool         `json:"adaptive"`
	DisplayName string       `json:"display_name,omitempty"`
	Description string       `json:"description,omitempty"`
	OutputTypes []OutputType `json:"output_types,omitempty"`
}

func (m *Model) Validate() error {
	if m == nil {
		return errors.New("model is required")
	}
	if m.Name == "" {
		return errors.New("model name is required")
	}
	for _, o := range m.OutputTypes {
		if !o.IsValid() {
			return fmt.Errorf("model %s: unknown output type %q", m.Name, o)
		}
	}
	return nil
}

// Supports reports whether the model declares output type o.
func (m *Model) Supports(o OutputType) bool {
	for _, t := range m.OutputTypes {
		if t == o {
			return true
		}
	}
	return false
}

func (m *Model) Info() ModelInfo {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return ModelInfo{
		ID:          m.Name,
		Model:       m.ModelClass,
		Adaptive:    m.Adaptive,
		DisplayName: display,
		Description: m.Description,
		OutputTypes: append([]OutputType(nil), m.OutputTypes...),
	}
}

// Feature is one column of metadata.
type Feature struct {
	Name        string `json:"name"`
	Categorical bool   `json:"categorical"`
	Protected   bool   `json:"protected"`
	Description string `json:"description,omitempty"`
}

// MetaDatabase holds feature metadata for the dataset.
type MetaDatabase struct {
	Features []Feature
}

func NewMetaDatabase(features ...Feature) *MetaDatabase {
	return &MetaDatabase{Features: features}
}

func (m *MetaDatabase) Feature(name string) (Feature, bool) {
	if m == nil {
		return Feature{}, false
	}
	for _, f := range m.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Protected lists the names of protected features.
func (m *MetaDatabase) Protected() []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, f := range m.Features {
		if f.Protected {
			out = append(out, f.Name)
		}
	}
	return out
}
