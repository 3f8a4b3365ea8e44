// Package publish pushes snapshots to external consumers such as Redis
// dashboards and Prometheus scrapers.
package publish

import (
	"context"
	"errors"

	"github.com/haskel/raimetrics/internal/aisystem"
)

// Publisher receives snapshots after they are captured. ExportMetadata is
// called after initialization and resets; AddMeasurement after every
// compute or update.
type Publisher interface {
	ExportMetadata(ctx context.Context, snap *aisystem.Snapshot) error
	AddMeasurement(ctx context.Context, snap *aisystem.Snapshot, tag string) error
}

// Resetter is implemented by publishers that keep their own history.
type Resetter interface {
	Reset(ctx context.Context, snap *aisystem.Snapshot) error
}

// Multi fans out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) ExportMetadata(ctx context.Context, snap *aisystem.Snapshot) error {
	var errs []error
	for _, p := range m {
		if err := p.ExportMetadata(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) AddMeasurement(ctx context.Context, snap *aisystem.Snapshot, tag string) error {
	var errs []error
	for _, p := range m {
		if err := p.AddMeasurement(ctx, snap, tag); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Reset(ctx context.Context, snap *aisystem.Snapshot) error {
	var errs []error
	for _, p := range m {
		r, ok := p.(Resetter)
		if !ok {
			continue
		}
		if err := r.Reset(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
