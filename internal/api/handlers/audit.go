package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/service"
)

// AuditLogResponse is an audit entry as exposed over the API.
type AuditLogResponse struct {
	ID        uint            `json:"id"`
	User      *uuid.UUID      `json:"user"`
	UserEmail *string         `json:"user_email"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Details   json.RawMessage `json:"details" swaggertype:"object"`
	IPAddress *string         `json:"ip_address"`
	UserAgent string          `json:"user_agent"`
	CreatedAt time.Time       `json:"created_at"`
}

func newAuditLogResponse(l models.AuditLog) AuditLogResponse {
	resp := AuditLogResponse{
		ID:        l.ID,
		User:      l.UserID,
		Action:    l.Action,
		Resource:  l.Resource,
		Details:   json.RawMessage("{}"),
		IPAddress: l.IPAddress,
		UserAgent: l.UserAgent,
		CreatedAt: l.CreatedAt,
	}
	if l.User != nil {
		email := l.User.Email
		resp.UserEmail = &email
	}
	if json.Valid([]byte(l.DetailsJSON)) {
		resp.Details = json.RawMessage(l.DetailsJSON)
	}
	return resp
}

// ListAuditLogs godoc
// @Summary List audit log entries
// @Description Newest first. Non-superusers only see their own entries.
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param action query string false "Filter by action"
// @Param resource query string false "Filter by resource label"
// @Param user_id query string false "Filter by user ID"
// @Param limit query int false "Page size (max 500)"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} AuditLogResponse
// @Failure 400 {object} ErrorResponse
// @Router /rbac/audit-logs/ [get]
func (h *RBACHandler) ListAuditLogs(c *gin.Context) {
	q := service.AuditQuery{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
			return
		}
		q.UserID = &id
	}
	var ok bool
	if q.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if q.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}

	logs, err := h.svc.ListAuditLogs(c.Request.Context(), actor(c), q)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, newAuditLogResponse(l))
	}
	c.JSON(http.StatusOK, resp)
}

// GetAuditLog godoc
// @Summary Get an audit log entry
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Audit log ID"
// @Success 200 {object} AuditLogResponse
// @Failure 404 {object} ErrorResponse
// @Router /rbac/audit-logs/{id}/ [get]
func (h *RBACHandler) GetAuditLog(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	l, err := h.svc.GetAuditLog(c.Request.Context(), actor(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuditLogResponse(*l))
}

func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key})
		return 0, false
	}
	return n, true
}
