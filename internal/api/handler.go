package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eugenenazirov/proptest/internal/binder"
	"github.com/eugenenazirov/proptest/internal/placeholder"
	"github.com/eugenenazirov/proptest/internal/settings"
	"github.com/eugenenazirov/proptest/internal/source"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Properties is the read side of a loaded configuration snapshot.
type Properties interface {
	Keys() []string
	Origin(key string) (string, bool)
	Get(key string) (string, error)
}

// Records exposes bound configuration records by name.
type Records interface {
	RecordNames() []string
	Record(name string) (*binder.Record, bool)
}

// Handler serves a read-only view over properties and bound records.
type Handler struct {
	properties Properties
	records    Records

	clock    func() time.Time
	loadedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(props Properties, records Records, opts ...HandlerOption) *Handler {
	h := &Handler{
		properties: props,
		records:    records,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.loadedAt = h.clock()
	return h
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{"GET " + healthPath, h.handleHealth},
		{"GET /api/properties", h.handleListProperties},
		{"GET /api/properties/{key}", h.handleGetProperty},
		{"GET /api/records", h.handleListRecords},
		{"GET /api/records/{name}", h.handleGetRecord},
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListProperties(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))

	keys := h.properties.Keys()
	views := make([]propertyView, 0, len(keys))
	for _, key := range keys {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		views = append(views, h.view(key))
	}

	resp := propertiesResponse{
		Properties: views,
		Count:      len(views),
		LoadedAt:   h.loadedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "property key must not be empty")
		return
	}

	if _, ok := h.properties.Origin(key); !ok {
		writeError(w, http.StatusNotFound, "Property not found", "no property named "+key)
		return
	}

	if _, err := h.properties.Get(key); err != nil {
		switch {
		case errors.Is(err, placeholder.ErrUnresolvedPlaceholder), errors.Is(err, placeholder.ErrCircularReference):
			writeError(w, http.StatusUnprocessableEntity, "Cannot resolve property", err.Error(),
				"Define the referenced property or add a default with ${key:default}")
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, h.view(key))
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	_ = r
	names := h.records.RecordNames()
	views := make([]recordView, 0, len(names))
	for _, name := range names {
		rec, ok := h.records.Record(name)
		if !ok {
			continue
		}
		views = append(views, newRecordView(name, rec))
	}
	writeJSON(w, http.StatusOK, recordsResponse{Records: views})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, ok := h.records.Record(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Record not found", "no record named "+name)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(name, rec))
}

func (h *Handler) view(key string) propertyView {
	origin, _ := h.properties.Origin(key)
	v := propertyView{Key: key, Origin: origin, EnvOverride: source.KeyToEnv(key)}

	value, err := h.properties.Get(key)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Value = settings.Mask(key, value)
	return v
}

func newRecordView(name string, rec *binder.Record) recordView {
	return recordView{
		Name:   name,
		Prefix: rec.Prefix(),
		Schema: rec.Schema(),
		Values: maskValues(rec.Prefix(), rec.AsMap()),
	}
}

// maskValues hides sensitive string values in a record tree.
func maskValues(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for field, value := range values {
		key := prefix + "." + field
		switch v := value.(type) {
		case string:
			out[field] = settings.Mask(key, v)
		case map[string]any:
			out[field] = maskValues(key, v)
		default:
			out[field] = v
		}
	}
	return out
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type propertyView struct {
	Key         string `json:"key"`
	Value       string `json:"value,omitempty"`
	Origin      string `json:"origin"`
	EnvOverride string `json:"envOverride"`
	Error       string `json:"error,omitempty"`
}

type propertiesResponse struct {
	Properties []propertyView `json:"properties"`
	Count      int            `json:"count"`
	LoadedAt   time.Time      `json:"loadedAt"`
}

type recordView struct {
	Name   string         `json:"name"`
	Prefix string         `json:"prefix"`
	Schema string         `json:"schema"`
	Values map[string]any `json:"values"`
}

type recordsResponse struct {
	Records []recordView `json:"records"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
