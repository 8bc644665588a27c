package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/usecase"
	"github.com/go-chi/chi/v5"
)

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

// Handler serves stored run reports read-only.
type Handler struct {
	runService *usecase.RunService
}

func NewHandler(runService *usecase.RunService) *Handler {
	return &Handler{runService: runService}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	r.Get("/v1/runs", h.listRuns)
	r.Get("/v1/runs/{id}", h.getRun)
	return r
}

type runSummaryResponse struct {
	ID          string `json:"id"`
	Root        string `json:"root"`
	FileCount   int    `json:"file_count"`
	FailedFiles int    `json:"failed_files"`
	ErrorCount  int    `json:"error_count"`
	FoundErrors bool   `json:"found_errors"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
}

type errorResponse struct {
	Path    string          `json:"path"`
	Key     string          `json:"key"`
	Params  []string        `json:"params"`
	Message string          `json:"message"`
	Value   json.RawMessage `json:"value,omitempty"`
}

type fileResponse struct {
	Namespace   string          `json:"namespace"`
	ContentType string          `json:"content_type"`
	Path        string          `json:"path"`
	Valid       bool            `json:"valid"`
	Errors      []errorResponse `json:"errors"`
}

type runResponse struct {
	runSummaryResponse
	Namespaces []string       `json:"namespaces"`
	Files      []fileResponse `json:"files"`
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.runService.List(r.Context(), domain.RunFilter{
		Root:  r.URL.Query().Get("root"),
		Limit: limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := make([]runSummaryResponse, 0, len(runs))
	for _, s := range runs {
		out = append(out, toSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.runService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(report))
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func toSummaryResponse(s domain.RunSummary) runSummaryResponse {
	return runSummaryResponse{
		ID:          s.ID,
		Root:        s.Root,
		FileCount:   s.FileCount,
		FailedFiles: s.FailedFiles,
		ErrorCount:  s.ErrorCount,
		FoundErrors: s.FoundErrors,
		StartedAt:   s.StartedAt.UTC().Format(timeFormat),
		FinishedAt:  s.FinishedAt.UTC().Format(timeFormat),
	}
}

func toRunResponse(report domain.RunReport) runResponse {
	resp := runResponse{
		runSummaryResponse: toSummaryResponse(report.Summary()),
		Namespaces:         report.Namespaces,
		Files:              make([]fileResponse, 0, len(report.Files)),
	}
	if resp.Namespaces == nil {
		resp.Namespaces = []string{}
	}
	for _, f := range report.Files {
		fr := fileResponse{
			Namespace:   f.Namespace,
			ContentType: f.ContentType,
			Path:        f.Path,
			Valid:       !f.Failed(),
			Errors:      make([]errorResponse, 0, len(f.Errors)),
		}
		for _, e := range f.Errors {
			fr.Errors = append(fr.Errors, errorResponse{
				Path:    e.Path,
				Key:     e.Key,
				Params:  e.Params,
				Message: e.Message,
				Value:   e.Value,
			})
		}
		resp.Files = append(resp.Files, fr)
	}
	return resp
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRunID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "packlint",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/runs": map[string]any{
				"get": map[string]any{"summary": "List validation runs"},
			},
			"/v1/runs/{id}": map[string]any{
				"get": map[string]any{"summary": "Get a validation run with file results"},
			},
		},
	}
}
