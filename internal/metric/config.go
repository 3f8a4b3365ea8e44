package metric

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PrivGroup names the privileged and unprivileged values of one protected
// attribute. The class fields name text categories instead and take
// precedence once resolved against the dataset codes.
type PrivGroup struct {
	Privileged        float64 `yaml:"privileged" json:"privileged"`
	Unprivileged      float64 `yaml:"unprivileged" json:"unprivileged"`
	PrivilegedClass   string  `yaml:"privileged_class" json:"privileged_class,omitempty"`
	UnprivilegedClass string  `yaml:"unprivileged_class" json:"unprivileged_class,omitempty"`
}

func (g PrivGroup) named() bool {
	return g.PrivilegedClass != "" || g.UnprivilegedClass != ""
}

type FairnessConfig struct {
	ProtectedAttributes []string `yaml:"protected_attributes" json:"protected_attributes" validate:"required,min=1,dive,required"`
	PositiveLabel       *float64 `yaml:"positive_label" json:"positive_label" validate:"required_without=PositiveClass"`
	// PositiveClass names the positive category of a text label column.
	PositiveClass string               `yaml:"positive_class" json:"positive_class,omitempty"`
	PrivGroups    map[string]PrivGroup `yaml:"priv_groups" json:"priv_groups,omitempty"`

	resolved bool
}

// Codebook maps the text categories of a column to their codes.
type Codebook interface {
	Lookup(column, label string) (float64, bool)
}

func (f *FairnessConfig) named() bool {
	if f.PositiveClass != "" {
		return true
	}
	for _, g := range f.PrivGroups {
		if g.named() {
			return true
		}
	}
	return false
}

// Unresolved reports category names that have not been turned into codes.
func (f *FairnessConfig) Unresolved() bool {
	return f != nil && f.named() && !f.resolved
}

// Resolve returns a copy whose positive label and priv groups carry the
// codes of the named categories. labelColumn is the ground-truth column.
func (f *FairnessConfig) Resolve(codes Codebook, labelColumn string) (*FairnessConfig, error) {
	out := *f
	out.resolved = true
	if !f.named() {
		return &out, nil
	}

	if f.PositiveClass != "" {
		c, ok := codes.Lookup(labelColumn, f.PositiveClass)
		if !ok {
			return nil, fmt.Errorf("%w: positive_class %q is not a category of %s", ErrInvalidConfig, f.PositiveClass, labelColumn)
		}
		out.PositiveLabel = &c
	}

	out.PrivGroups = make(map[string]PrivGroup, len(f.PrivGroups))
	for attr, g := range f.PrivGroups {
		if g.PrivilegedClass != "" {
			c, ok := codes.Lookup(attr, g.PrivilegedClass)
			if !ok {
				return nil, fmt.Errorf("%w: privileged_class %q is not a category of %s", ErrInvalidConfig, g.PrivilegedClass, attr)
			}
			g.Privileged = c
		}
		if g.UnprivilegedClass != "" {
			c, ok := codes.Lookup(attr, g.UnprivilegedClass)
			if !ok {
				return nil, fmt.Errorf("%w: unprivileged_class %q is not a category of %s", ErrInvalidConfig, g.UnprivilegedClass, attr)
			}
			g.Unprivileged = c
		}
		out.PrivGroups[attr] = g
	}
	return &out, nil
}

// PrivGroupFor returns the configured groups of attr, defaulting to
// privileged=1 and unprivileged=0.
func (f *FairnessConfig) PrivGroupFor(attr string) PrivGroup {
	if g, ok := f.PrivGroups[attr]; ok {
		return g
	}
	return PrivGroup{Privileged: 1, Unprivileged: 0}
}

// UserConfig is the typed per-capability configuration groups consult.
type UserConfig struct {
	Fairness *FairnessConfig `yaml:"fairness" json:"fairness,omitempty"`
}

// Resolve turns category names into codes. See FairnessConfig.Resolve.
func (c *UserConfig) Resolve(codes Codebook, labelColumn string) (*UserConfig, error) {
	if c == nil || c.Fairness == nil {
		return c, nil
	}
	f, err := c.Fairness.Resolve(codes, labelColumn)
	if err != nil {
		return nil, err
	}
	out := *c
	out.Fairness = f
	return &out, nil
}

func (c *UserConfig) Validate() error {
	if c == nil {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if f := c.Fairness; f != nil {
		for attr := range f.PrivGroups {
			if !slices.Contains(f.ProtectedAttributes, attr) {
				return fmt.Errorf("%w: priv group %q is not a protected attribute", ErrInvalidConfig, attr)
			}
		}
	}
	return nil
}

// HasFairness reports whether a usable fairness configuration is present.
func (c *UserConfig) HasFairness() bool {
	return c != nil && c.Fairness != nil &&
		len(c.Fairness.ProtectedAttributes) > 0 &&
		c.Fairness.PositiveLabel != nil &&
		!c.Fairness.Unresolved()
}
