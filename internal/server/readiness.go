package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
)

type ReadinessIssue struct {
	ID     string         `json:"id"`
	Status ReadinessState `json:"status"`
	Error  string         `json:"error,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Checks      []ReadinessIssue `json:"checks"`
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the database connection and that tenants can be listed.
func (s *Server) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := ReadinessResponse{SystemState: ReadinessStateReady}
	check := func(id string, err error) {
		issue := ReadinessIssue{ID: id, Status: ReadinessStateReady}
		if err != nil {
			issue.Status = ReadinessStateNotReady
			issue.Error = err.Error()
			resp.SystemState = ReadinessStateNotReady
		}
		resp.Checks = append(resp.Checks, issue)
	}

	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		check("database", err)
	}
	_, err := s.store.ListTenants(ctx)
	check("tenant_store", err)

	status := http.StatusOK
	if resp.SystemState != ReadinessStateReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
