package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/collector-trigger/internal/collector"
	"github.com/eugenenazirov/collector-trigger/internal/metrics"
	"github.com/eugenenazirov/collector-trigger/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const saveSuccessMessage = "Details saved successfully."

var errNotObject = errors.New("request body must be a JSON object")

// Handler wires the collector runner and config storage into HTTP handlers.
type Handler struct {
	runner  collector.Runner
	storage storage.Storage
	logger  *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger used for collector and storage failures.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(runner collector.Runner, store storage.Storage, opts ...HandlerOption) *Handler {
	metrics.Init()

	h := &Handler{
		runner:  runner,
		storage: store,
		logger:  zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRunCollector blocks until the collector exits. The run is detached
// from the request context so a client disconnect does not kill the child.
func (h *Handler) handleRunCollector(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", requestIDFromContext(r.Context())))

	metrics.IncCollectorRunsInFlight()
	defer metrics.DecCollectorRunsInFlight()

	result, err := h.runner.Run(context.WithoutCancel(r.Context()))

	if err != nil {
		var exitErr *collector.ExitError
		switch {
		case errors.As(err, &exitErr):
			logger.Warn("collector exited with non-zero code",
				zap.Int("exit_code", exitErr.Code),
				zap.String("stderr", exitErr.Stderr),
				zap.Duration("duration", result.Duration),
			)
			metrics.ObserveCollectorRun(metrics.StatusFailure, result.Duration)
		case errors.Is(err, collector.ErrTimeout):
			logger.Warn("collector timed out", zap.Error(err), zap.String("stderr", result.Stderr))
			metrics.ObserveCollectorRun(metrics.StatusTimeout, result.Duration)
		default:
			logger.Error("collector could not be run", zap.Error(err))
			metrics.ObserveCollectorRun(metrics.StatusFailure, result.Duration)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("collector finished", zap.Duration("duration", result.Duration))
	metrics.ObserveCollectorRun(metrics.StatusSuccess, result.Duration)
	writeJSON(w, http.StatusOK, runCollectorResponse{Output: result.Stdout})
}

func (h *Handler) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	data, err := decodeObject(r.Body)
	if err != nil {
		metrics.ObserveConfigSave(metrics.StatusInvalid)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.storage.Merge(data); err != nil {
		h.logger.Error("failed to save collector config",
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		metrics.ObserveConfigSave(metrics.StatusFailure)
		writeInternalError(w, err)
		return
	}

	echo, err := json.Marshal(data)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	metrics.ObserveConfigSave(metrics.StatusSuccess)
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("%s %s", saveSuccessMessage, echo),
	})
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := h.storage.Load()
	if err != nil {
		h.logger.Error("failed to load collector config",
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{Config: doc})
}

// decodeObject reads a single JSON object of arbitrary keys. Numbers keep
// their integer form so they are stored as posted.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotObject
		}
		return nil, fmt.Errorf("unable to parse JSON payload: %w", err)
	}
	if data == nil {
		return nil, errNotObject
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("request body must contain a single JSON object")
	}

	for key, value := range data {
		data[key] = normalizeNumbers(value)
	}
	return data, nil
}

// normalizeNumbers replaces json.Number values with int64, uint64 or float64.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	default:
		return value
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type runCollectorResponse struct {
	Output string `json:"output"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type configResponse struct {
	Config map[string]any `json:"config"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err.Error())
}
