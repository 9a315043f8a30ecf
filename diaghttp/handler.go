// Package diaghttp exposes a read-mostly HTTP view of a handle cache: which
// backends were requested, where they were loaded from, why candidates were
// rejected. It also allows changing a backend's level and flushing it.
//
// Routes:
//
//	GET  /backends               all cache entries
//	GET  /backends/{name}        one entry
//	PUT  /backends/{name}/level  body {"level":"DEBUG"}
//	POST /backends/{name}/flush
//	GET  /stats                  cache counters
//
// Responses are JSON unless the request accepts application/msgpack.
package diaghttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	rapidslogger "github.com/ttnghia/rapids-logger"
	"github.com/vmihailenco/msgpack/v5"
)

// ContentTypeMsgpack selects MessagePack responses via the Accept header.
const ContentTypeMsgpack = "application/msgpack"

// Registry is the part of a HandleCache the handler reads.
type Registry interface {
	Snapshot() []rapidslogger.EntrySnapshot
	SnapshotOf(name string) (rapidslogger.EntrySnapshot, bool)
	Lookup(name string) (rapidslogger.Logger, bool)
	Stats() rapidslogger.CacheStats
}

// Static errors for request handling
var (
	ErrBackendNotFound  = errors.New("backend not found")
	ErrBackendNotLoaded = errors.New("backend not loaded")
	ErrInvalidBody      = errors.New("invalid request body")
)

type levelRequest struct {
	Level string `json:"level"`
}

type levelResponse struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

type flushResponse struct {
	Name    string `json:"name"`
	Flushed bool   `json:"flushed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	registry Registry
	logger   rapidslogger.StructuredLogger
}

// NewHandler builds the diagnostics router. logger may be nil.
func NewHandler(registry Registry, logger rapidslogger.StructuredLogger) http.Handler {
	h := &handler{registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/stats", h.stats)
	r.Route("/backends", func(r chi.Router) {
		r.Get("/", h.list)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/level", h.setLevel)
			r.Post("/flush", h.flush)
		})
	})
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, h.registry.Snapshot())
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, h.registry.Stats())
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, ok := h.registry.SnapshotOf(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: %s", ErrBackendNotFound, name))
		return
	}
	writeResponse(w, r, http.StatusOK, snap)
}

func (h *handler) setLevel(w http.ResponseWriter, r *http.Request) {
	log, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidBody, err))
		return
	}
	level, err := rapidslogger.ParseLevel(req.Level)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := log.SetMinimumLevel(level); err != nil {
		writeError(w, r, http.StatusConflict, err)
		return
	}

	if h.logger != nil {
		h.logger.Info("Backend level changed via diagnostics", "backend", log.Name(), "level", level.String())
	}
	writeResponse(w, r, http.StatusOK, levelResponse{Name: log.Name(), Level: log.MinimumLevel().String()})
}

func (h *handler) flush(w http.ResponseWriter, r *http.Request) {
	log, ok := h.lookup(w, r)
	if !ok {
		return
	}
	log.Flush()
	writeResponse(w, r, http.StatusOK, flushResponse{Name: log.Name(), Flushed: true})
}

// lookup resolves {name} to a bound logger, writing the error response
// itself when there is none.
func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (rapidslogger.Logger, bool) {
	name := chi.URLParam(r, "name")
	if _, known := h.registry.SnapshotOf(name); !known {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: %s", ErrBackendNotFound, name))
		return rapidslogger.Logger{}, false
	}
	log, ok := h.registry.Lookup(name)
	if !ok || !log.Available() {
		writeError(w, r, http.StatusConflict, fmt.Errorf("%w: %s", ErrBackendNotLoaded, name))
		return rapidslogger.Logger{}, false
	}
	return log, true
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if strings.Contains(r.Header.Get("Accept"), ContentTypeMsgpack) {
		w.Header().Set("Content-Type", ContentTypeMsgpack)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		_ = enc.Encode(v)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeResponse(w, r, status, errorResponse{Error: err.Error()})
}
