package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/dashboard"
	"github.com/kalambet/bizpulse/internal/export"
	"github.com/kalambet/bizpulse/internal/page"
	"github.com/kalambet/bizpulse/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Dashboard is the page wiring served over HTTP and MCP.
// Implemented by dashboard.Dashboard.
type Dashboard interface {
	Input() (string, error)
	SetInput(text string) error
	Page(kind string) (page.Snapshot, error)
	Open(ctx context.Context, kind string) (page.Snapshot, error)
	Submit(ctx context.Context, kind string) (page.Snapshot, error)
	Export(ctx context.Context, kind string) (string, []byte, error)
	AnalyzeAll(ctx context.Context) ([]page.Snapshot, error)
	Records(prefix string) ([]storage.Entry, error)
	Purge() (int, error)
}

// KindInfo describes an analysis kind to API clients.
type KindInfo struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Namespace string `json:"namespace"`
	FileName  string `json:"file_name"`
}

// InputBody is the payload of GET and PUT /input.
type InputBody struct {
	Text string `json:"text"`
}

// RecordInfo is one stored analysis record.
type RecordInfo struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewHandler returns the HTTP API over d.
func NewHandler(d Dashboard) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/kinds", handleKinds)

	r.Get("/input", handleGetInput(d))
	r.Put("/input", handleSetInput(d))

	r.Route("/pages/{kind}", func(r chi.Router) {
		r.Get("/", handleOpen(d))
		r.Get("/state", handleState(d))
		r.Post("/submit", handleSubmit(d))
		r.Get("/export", handleExport(d))
	})

	r.Post("/analyze", handleAnalyzeAll(d))

	r.Get("/cache", handleListCache(d))
	r.Delete("/cache", handlePurgeCache(d))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleKinds(w http.ResponseWriter, r *http.Request) {
	all := analysis.All()
	out := make([]KindInfo, len(all))
	for i, k := range all {
		out[i] = KindInfo{Name: k.Name, Title: k.Title, Namespace: k.Namespace, FileName: k.FileName}
	}
	writeJSON(w, http.StatusOK, out)
}

func handleGetInput(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := d.Input()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "reading input: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, InputBody{Text: text})
	}
}

func handleSetInput(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body InputBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := d.SetInput(body.Text); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "storing input: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleOpen(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Open(r.Context(), chi.URLParam(r, "kind"))
		writeSnapshot(w, s, err)
	}
}

func handleState(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Page(chi.URLParam(r, "kind"))
		writeSnapshot(w, s, err)
	}
}

func handleSubmit(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Submit(r.Context(), chi.URLParam(r, "kind"))
		writeSnapshot(w, s, err)
	}
}

func handleAnalyzeAll(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps, err := d.AnalyzeAll(r.Context())
		if err != nil {
			slog.Error("analyze all failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, snaps)
	}
}

func handleExport(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, b, err := d.Export(r.Context(), chi.URLParam(r, "kind"))
		if err != nil {
			var ee *export.ExportError
			switch {
			case errors.Is(err, dashboard.ErrUnknownKind):
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
			case errors.Is(err, page.ErrNothingDisplayed):
				httpError(w, http.StatusConflict, "invalid_request_error", "nothing to export: open the page first")
			case errors.As(err, &ee):
				httpError(w, http.StatusInternalServerError, "export_error", page.ExportFailedMessage)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", page.ExportFailedMessage)
			}
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Write(b)
	}
}

func handleListCache(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := d.Records(r.URL.Query().Get("prefix"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "listing records: %v", err)
			return
		}
		out := make([]RecordInfo, len(entries))
		for i, e := range entries {
			out[i] = RecordInfo{Key: e.Key, Size: len(e.Value), UpdatedAt: e.UpdatedAt}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handlePurgeCache(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Purge()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "purging records: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
	}
}

func writeSnapshot(w http.ResponseWriter, s page.Snapshot, err error) {
	if errors.Is(err, dashboard.ErrUnknownKind) {
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
		return
	}
	if err != nil {
		slog.Error("page request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
