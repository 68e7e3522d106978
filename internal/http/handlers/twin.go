package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/labtwin-backend/internal/http/response"
	learningtwin "github.com/yungbote/labtwin-backend/internal/learning/twin"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/services"
)

type TwinHandler struct {
	log  *logger.Logger
	twin services.TwinService
}

func NewTwinHandler(log *logger.Logger, twin services.TwinService) *TwinHandler {
	return &TwinHandler{log: log.With("handler", "TwinHandler"), twin: twin}
}

// GET /api/twin/me
func (h *TwinHandler) GetMine(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	view, err := h.twin.Get(c.Request.Context(), studentID)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load twin")
		return
	}
	response.RespondOK(c, view)
}

// GET /api/twin/students/:id
func (h *TwinHandler) GetStudent(c *gin.Context) {
	studentID, ok := parseUUID(c, c.Param("id"), "studentId")
	if !ok {
		return
	}
	view, err := h.twin.Get(c.Request.Context(), studentID)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load twin")
		return
	}
	response.RespondOK(c, view)
}

// POST /api/twin/behavior
func (h *TwinHandler) RecordBehavior(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	var sample learningtwin.BehaviorSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	t, err := h.twin.RecordBehavior(c.Request.Context(), studentID, sample)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to record behavior")
		return
	}
	response.RespondOK(c, t)
}

// POST /api/twin/revisions
func (h *TwinHandler) RecordRevision(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	var rev learningtwin.Revision
	if err := c.ShouldBindJSON(&rev); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	t, err := h.twin.RecordCodeRevision(c.Request.Context(), studentID, rev)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to record revision")
		return
	}
	response.RespondOK(c, t)
}
