package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ListAllCalls lists the calls of every tenant, newest first.
func (s *Server) ListAllCalls(c *gin.Context) {
	var since *time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("since", "invalid_time", "since must be RFC3339"))
			return
		}
		t = t.UTC()
		since = &t
	}

	refresh, err := boolQuery(c, "refresh")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	calls, err := s.sync.AllCalls(c.Request.Context(), since, refresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, calls)
}
