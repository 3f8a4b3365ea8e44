package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/recorder"
	"github.com/haskel/raimetrics/internal/storage"
)

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	System  string `json:"system"`
	Task    string `json:"task"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MetricResponse struct {
	Group  string `json:"group"`
	Metric string `json:"metric"`
	Value  any    `json:"value"`
}

type ComputeRequest struct {
	Split       string    `json:"split,omitempty"`
	Predictions []float64 `json:"predictions,omitempty"`
	// PredictionLabels are text predictions encoded with the dataset label
	// categories. They replace Predictions.
	PredictionLabels []string    `json:"prediction_labels,omitempty"`
	Probabilities    [][]float64 `json:"probabilities,omitempty"`
	Reset            bool        `json:"reset,omitempty"`
	Isolate          bool        `json:"isolate,omitempty"`
	Tag              string      `json:"tag,omitempty"`
}

type UpdateRequest struct {
	Samples []dataset.Sample `json:"samples"`
	Tag     string           `json:"tag,omitempty"`
}

// MeasurementResponse carries a recorded measurement and, for a partial
// isolated compute, the joined group failures.
type MeasurementResponse struct {
	recorder.Result
	Error string `json:"error,omitempty"`
}

type ResetRequest struct {
	// History also drops the recorded measurements.
	History bool `json:"history,omitempty"`
}

type ResetResponse struct {
	Reset          bool   `json:"reset"`
	Timestamp      string `json:"timestamp"`
	HistoryCleared bool   `json:"history_cleared,omitempty"`
}

type CertificateResponse struct {
	Name string `json:"name"`
	certificate.Value
}

type ExportResponse struct {
	Dir string `json:"dir"`
}

type MeasurementsResponse struct {
	Measurements []*storage.Measurement `json:"measurements"`
	Count        int                    `json:"count"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	sys := s.recorder.System()
	resp := InfoResponse{
		Name:    "rai",
		Version: s.version,
		System:  sys.Name(),
		Task:    sys.Task().String(),
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Initialized: s.recorder.System().Initialized(),
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	sys := s.recorder.System()
	if !sys.Initialized() {
		s.writeError(w, aisystem.ErrNotInitialized)
		return
	}
	s.writeJSON(w, http.StatusOK, sys.MetricValues())
}

func (s *Server) handleMetricInfo(w http.ResponseWriter, r *http.Request) {
	sys := s.recorder.System()
	if !sys.Initialized() {
		s.writeError(w, aisystem.ErrNotInitialized)
		return
	}
	s.writeJSON(w, http.StatusOK, sys.MetricInfo())
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	name := r.PathValue("metric")

	v, err := s.recorder.System().Metric(group, name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MetricResponse{Group: group, Metric: name, Value: v})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.recorder.System().ModelInfo())
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.recorder.System().ProjectInfo())
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	ms := s.recorder.Measurements(r.URL.Query().Get("tag"), limit)
	if ms == nil {
		ms = []*storage.Measurement{}
	}
	s.writeJSON(w, http.StatusOK, MeasurementsResponse{Measurements: ms, Count: len(ms)})
}

func (s *Server) handleLatestMeasurement(w http.ResponseWriter, r *http.Request) {
	m := s.recorder.Latest()
	if m == nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no measurement recorded"})
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCertificateValues(w http.ResponseWriter, r *http.Request) {
	sys := s.recorder.System()
	if !sys.Initialized() {
		s.writeError(w, aisystem.ErrNotInitialized)
		return
	}
	s.writeJSON(w, http.StatusOK, sys.CertificateValues())
}

func (s *Server) handleCertificateInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.recorder.System().CertificateInfo())
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	sys := s.recorder.System()
	if !sys.Initialized() {
		s.writeError(w, aisystem.ErrNotInitialized)
		return
	}
	name := r.PathValue("name")
	v, err := sys.Certificate(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CertificateResponse{Name: name, Value: v})
}

// encodeLabels turns text predictions into the dataset's label codes.
func (s *Server) encodeLabels(labels []string) ([]float64, error) {
	if s.labelCodes == nil {
		return nil, errors.New("text prediction labels need a dataset with a categorical label")
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		c, ok := s.labelCodes.Lookup(s.labelColumn, l)
		if !ok {
			return nil, fmt.Errorf("prediction %d: %q is not a category of %s", i, l, s.labelColumn)
		}
		out[i] = c
	}
	return out, nil
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if !s.decode(w, r, &req) {
		return
	}

	preds := req.Predictions
	if len(req.PredictionLabels) > 0 {
		if len(preds) > 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "predictions and prediction_labels are mutually exclusive"})
			return
		}
		var err error
		if preds, err = s.encodeLabels(req.PredictionLabels); err != nil {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	res, err := s.recorder.Compute(r.Context(), aisystem.ComputeOptions{
		Split:         dataset.Split(req.Split),
		Predictions:   preds,
		Probabilities: req.Probabilities,
		Reset:         req.Reset,
		Isolate:       req.Isolate,
	}, req.Tag)
	if res == nil {
		s.writeError(w, err)
		return
	}

	resp := MeasurementResponse{Result: *res}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Samples) == 0 {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "samples field is required"})
		return
	}

	res, err := s.recorder.Update(r.Context(), req.Samples, req.Tag)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MeasurementResponse{Result: *res})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.recorder.Reset(r.Context(), req.History); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResetResponse{
		Reset:          true,
		Timestamp:      s.recorder.System().Timestamp(),
		HistoryCleared: req.History,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	dir, err := s.recorder.Export()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ExportResponse{Dir: dir})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
		return false
	}
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	return false
}

// statusFor maps domain errors to HTTP status codes. Bad request input is
// reported as 400 even when a metric group detected it; other group
// failures are 422.
func statusFor(err error) int {
	var groupErr *aisystem.GroupError

	switch {
	case errors.Is(err, aisystem.ErrUnknownSplit),
		errors.Is(err, metric.ErrMissingPredictions),
		errors.Is(err, metric.ErrMissingLabels),
		errors.Is(err, metric.ErrShapeMismatch):
		return http.StatusBadRequest
	case errors.As(err, &groupErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, aisystem.ErrUnknownGroup),
		errors.Is(err, aisystem.ErrUnknownMetric),
		errors.Is(err, aisystem.ErrUnknownCertificate),
		errors.Is(err, dataset.ErrSplitNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, aisystem.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, recorder.ErrExportDisabled):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
	}
}
