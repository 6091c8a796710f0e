package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"broker-fee-reconciler/internal/analytics"
	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tooLargeMsg := fmt.Sprintf("File too large, max %d MB", s.config.MaxUploadBytes>>20)
	if r.ContentLength > s.config.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		s.logger.WithError(err).Warn("Failed to parse multipart form")
		writeError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded. Ensure the 'file' field is used.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	log := s.logger.WithFields(logger.Fields{"file": header.Filename, "bytes": len(data)})
	stmt, err := s.parser.ParseStatement(r.Context(), header.Filename, data)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.WithError(err).Error("Statement processing failed")
		} else {
			log.WithError(err).Warn("Statement rejected")
		}
		writeError(w, status, err.Error())
		return
	}

	stmt = s.store.Add(stmt)
	log.WithFields(logger.Fields{"id": stmt.ID, "positions": len(stmt.Positions)}).Info("Statement stored")
	writeJSON(w, http.StatusCreated, stmt)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	statements := s.store.List()
	if statements == nil {
		statements = []*models.Statement{}
	}
	writeJSON(w, http.StatusOK, statements)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.lookup(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analytics.FilterStatement(stmt, filter))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.lookup(w, r)
	if !ok {
		return
	}
	series := analytics.DailySeries(stmt.Positions)
	if series == nil {
		series = []analytics.DailyFee{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	stmt, ok := s.lookup(w, r)
	if !ok {
		return
	}

	limit := analytics.DefaultTopN
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	top := analytics.TopExpensive(stmt.Positions, limit)
	if top == nil {
		top = []analytics.SymbolCost{}
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Compare())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*models.Statement, bool) {
	id := r.PathValue("id")
	stmt, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("statement not found: %s", id))
		return nil, false
	}
	return stmt, true
}

func parseFilter(r *http.Request) (analytics.Filter, error) {
	var f analytics.Filter
	q := r.URL.Query()

	if v := q.Get("start"); v != "" {
		t, err := models.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid start date: %s", v)
		}
		f.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := models.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid end date: %s", v)
		}
		f.End = t
	}
	if v := q.Get("tickers"); v != "" {
		f.Tickers = strings.Split(v, ",")
	}
	return f, nil
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Category {
	case errors.CategoryFormat, errors.CategoryDecode, errors.CategoryNoData, errors.CategoryNetwork:
		return http.StatusBadRequest
	case errors.CategoryFile:
		if appErr.Code == errors.CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.GetGlobalLogger().WithComponent("server").WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
