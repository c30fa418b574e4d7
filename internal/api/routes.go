package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/altobi/storyboard-exporter/internal/config"
	"github.com/altobi/storyboard-exporter/internal/exporter"
	"github.com/altobi/storyboard-exporter/internal/render"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/exports", startExportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Get("/exports/{id}/file", exportFileHandler(cfg))
		r.Get("/exports/{id}/events", exportEventsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: string(render.StateIdle)}

		run := cfg.Exports.Active()
		if run != nil {
			resp.State = string(run.State())
			resp.Progress = run.Progress()
			if err := run.Err(); err != nil {
				resp.LastError = err.Error()
			}

			rec, err := cfg.Repository.GetExport(r.Context(), run.ID)
			if err == nil && rec != nil {
				active := ExportToResponse(rec)
				resp.Active = &active
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exporter.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		rec, err := cfg.Exports.Start(r.Context(), req)
		if err != nil {
			if errors.Is(err, render.ErrExportInProgress) {
				WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_PROGRESS")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportToResponse(rec))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := cfg.Repository.ListExports(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportsResponse{Exports: make([]ExportResponse, len(records))}
		for i, rec := range records {
			resp.Exports[i] = ExportToResponse(rec)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "export id required", "BAD_REQUEST")
			return
		}

		rec, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ExportToResponse(rec))
	}
}

func exportFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "export id required", "BAD_REQUEST")
			return
		}

		rec, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		if rec.Status != string(render.StateComplete) || rec.OutputPath == "" {
			WriteError(w, http.StatusConflict, "export has no output yet", "NOT_READY")
			return
		}

		if err := cfg.Files.ServeFile(w, r, rec.OutputPath); err != nil {
			cfg.Logger.Error("export file serve error", "error", err, "export_id", id)
		}
	}
}
