package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/marksearch/internal/model"
	"github.com/sells-group/marksearch/internal/source"
)

const minQueryRunes = 2

// errShortQuery is the validation message for q.
const errShortQuery = "query must be at least 2 characters"

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	labels := s.opts.Labels
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    s.opts.Name,
		"version": s.opts.Version,
		"sources": labels,
		"status":  "active",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"browser": s.opts.BrowserStarted(),
	})
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	q, ok := query(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res := s.search.SearchAll(ctx, q)
	s.record(r, model.SearchRecord{
		Query:      q,
		Scope:      model.ScopeAll,
		Total:      res.Total,
		Errors:     res.Errors,
		DurationMs: time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearchSource(w http.ResponseWriter, r *http.Request) {
	q, ok := query(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "source")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.search.Search(ctx, id, q)
	if errors.Is(err, source.ErrUnknownSource) {
		writeDetail(w, http.StatusNotFound, "unknown source: "+id)
		return
	}
	if err != nil {
		s.log.Error("search failed", zap.String("source", id), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	rec := model.SearchRecord{Query: q, Scope: id, Total: len(res.Trademarks), DurationMs: res.DurationMs}
	if res.Error != "" {
		rec.Errors = []string{id + ": " + res.Error}
	}
	s.record(r, rec)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeDetail(w, http.StatusNotFound, "search history is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.opts.Store.ListSearches(r.Context(), limit)
	if err != nil {
		s.log.Error("list history failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// query returns q, writing a 400 when it is too short.
func query(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query().Get("q")
	if utf8.RuneCountInString(q) < minQueryRunes {
		writeDetail(w, http.StatusBadRequest, errShortQuery)
		return "", false
	}
	return q, true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.opts.RequestTimeout)
}

// record saves a history entry. Failures are logged, never surfaced.
func (s *Server) record(r *http.Request, rec model.SearchRecord) {
	if s.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := s.opts.Store.RecordSearch(ctx, &rec); err != nil {
		s.log.Warn("record search failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}
