package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var p model.Parcel
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode parcel"))
		return
	}

	res := s.engine.EvaluateParcel(r.Context(), p)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
		return
	}

	var parcels []model.Parcel
	if err := json.NewDecoder(r.Body).Decode(&parcels); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode parcels"))
		return
	}
	if len(parcels) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("server: empty batch"))
		return
	}

	batch, err := s.engine.EvaluateBatch(r.Context(), parcels, s.concurrency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if _, err := s.store.CreateBatch(r.Context(), batch.BatchID, len(parcels)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.SaveResults(r.Context(), batch); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"batch_id": batch.BatchID,
		"summary":  batch.Summary,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
		return
	}

	batchID := chi.URLParam(r, "batchID")
	batch, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleGetBatchSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
		return
	}

	batchID := chi.URLParam(r, "batchID")
	summary, err := s.store.GetBatchSummary(r.Context(), batchID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusConflict, eris.Errorf("server: batch %s has no results yet", batchID))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
