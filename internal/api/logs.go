package api

import (
	"net/http"
	"strconv"
	"time"

	"floravision/internal/logs"
)

const (
	defaultLogLines = 100
	maxLogWait      = 10 * time.Second
)

// handleLogs returns log lines. Without offset it returns the last limit
// lines; with offset and follow=1 it long-polls for new lines.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logPath == "" {
		s.writeError(w, http.StatusNotFound, "log file not configured")
		return
	}
	q := r.URL.Query()
	opts := logs.TailOptions{Offset: -1, Limit: defaultLogLines}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.ParseInt(v, 10, 64)
		if err != nil || offset < 0 {
			s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = offset
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}
	if truthy(q.Get("follow")) {
		opts.Follow = true
		opts.Wait = maxLogWait
	}
	minLevel, err := logs.ParseLevel(q.Get("level"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := logs.Filter{MinLevel: minLevel, Component: q.Get("component"), Image: q.Get("image")}

	result, err := logs.Tail(r.Context(), s.logPath, opts)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result.Lines = filter.Apply(result.Lines)
	if result.Lines == nil {
		result.Lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, result)
}
