package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/metric"
)

// Data represents the persisted data structure.
type Data struct {
	Version      int            `json:"version"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Measurements []*Measurement `json:"measurements"`
}

// Measurement is one recorded set of metric values.
type Measurement struct {
	ID          string                   `json:"id"`
	System      string                   `json:"system"`
	Date        string                   `json:"date"`
	RecordedAt  time.Time                `json:"recorded_at"`
	Tag         string                   `json:"tag,omitempty"`
	Split       string                   `json:"split,omitempty"`
	SampleCount int64                    `json:"sample_count"`
	Values      map[string]metric.Values `json:"values"`
	// Certificates holds the certificate outcomes at the time of the
	// measurement.
	Certificates map[string]certificate.Value `json:"certificates,omitempty"`
}

const (
	// currentVersion 2 added certificate outcomes; version 1 files load
	// unchanged.
	currentVersion = 2
	dataFileName   = "rai_history.json"

	DefaultMaxMeasurements = 1000
)

// Storage keeps the measurement history in memory and flushes it to disk.
type Storage struct {
	dataDir         string
	flushInterval   time.Duration
	maxMeasurements int
	logger          *slog.Logger

	mu     sync.RWMutex
	data   *Data
	dirty  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Storage instance. maxMeasurements <= 0 uses
// DefaultMaxMeasurements.
func New(dataDir string, flushInterval time.Duration, maxMeasurements int, logger *slog.Logger) *Storage {
	if maxMeasurements <= 0 {
		maxMeasurements = DefaultMaxMeasurements
	}
	return &Storage{
		dataDir:         dataDir,
		flushInterval:   flushInterval,
		maxMeasurements: maxMeasurements,
		logger:          logger,
		data:            newEmptyData(),
		done:            make(chan struct{}),
	}
}

func newEmptyData() *Data {
	return &Data{Version: currentVersion, UpdatedAt: time.Now()}
}

// Path returns the history file location.
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, dataFileName)
}

// Load replaces the in-memory history with the file on disk. A missing file
// starts an empty history. An unreadable or newer file is moved aside so the
// next save does not overwrite it.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no history file, starting fresh", "path", path)
		s.data = newEmptyData()
		return nil
	}
	if err != nil {
		return err
	}

	var data Data
	reason := ""
	switch err := json.Unmarshal(raw, &data); {
	case err != nil:
		reason = err.Error()
	case data.Version > currentVersion:
		reason = fmt.Sprintf("version %d is newer than %d", data.Version, currentVersion)
	}
	if reason != "" {
		aside := fmt.Sprintf("%s.unreadable-%d", path, time.Now().Unix())
		if err := os.Rename(path, aside); err != nil {
			return fmt.Errorf("history file %s is unusable (%s) and could not be moved: %w", path, reason, err)
		}
		s.logger.Warn("history file unusable, moved aside", "reason", reason, "moved_to", aside)
		s.data = newEmptyData()
		return nil
	}

	data.Version = currentVersion
	s.data = &data
	s.trimLocked()
	s.logger.Info("loaded history", "path", path, "measurements", len(data.Measurements))
	return nil
}

// Save writes the history to disk whether or not it changed.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// flush saves only unsaved changes.
func (s *Storage) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// saveLocked writes a temp file in the data dir and renames it over the
// history file.
func (s *Storage) saveLocked() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	s.data.UpdatedAt = time.Now()

	tmp, err := os.CreateTemp(s.dataDir, dataFileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return err
	}

	s.dirty = false
	s.logger.Debug("saved history", "path", s.Path(), "measurements", len(s.data.Measurements))
	return nil
}

// Start flushes unsaved changes every flush interval until Stop.
func (s *Storage) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.flush(); err != nil {
					s.logger.Error("failed to save history", "error", err)
				}
			}
		}
	}()
}

// Stop ends the flush loop and saves the final state.
func (s *Storage) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return s.Save()
}

// Append records m, assigning an ID and RecordedAt when unset. The oldest
// measurements are dropped past the configured maximum.
func (s *Storage) Append(m *Measurement) *Measurement {
	stored := *m
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Measurements = append(s.data.Measurements, &stored)
	s.trimLocked()
	s.dirty = true

	copied := stored
	return &copied
}

func (s *Storage) trimLocked() {
	if extra := len(s.data.Measurements) - s.maxMeasurements; extra > 0 {
		s.data.Measurements = append([]*Measurement(nil), s.data.Measurements[extra:]...)
	}
}

// List returns up to limit most recent measurements, oldest first, optionally
// filtered by tag. limit <= 0 returns all.
func (s *Storage) List(tag string, limit int) []*Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Measurement
	for _, m := range s.data.Measurements {
		if tag != "" && m.Tag != tag {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// Latest returns the most recent measurement, or nil when there is none.
func (s *Storage) Latest() *Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data.Measurements)
	if n == 0 {
		return nil
	}
	copied := *s.data.Measurements[n-1]
	return &copied
}

// Clear drops every measurement.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Measurements = nil
	s.dirty = true
}

// IsDirty returns whether data has unsaved changes.
func (s *Storage) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Len returns the number of stored measurements.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Measurements)
}
