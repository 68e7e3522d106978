package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/labtwin-backend/internal/http/response"
	"github.com/yungbote/labtwin-backend/internal/inference/engine"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/ctxutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/services"
)

type AIHandler struct {
	log    *logger.Logger
	hints  services.HintService
	usage  services.UsageService
	status services.StatusService
}

func NewAIHandler(log *logger.Logger, hints services.HintService, usage services.UsageService, status services.StatusService) *AIHandler {
	return &AIHandler{log: log.With("handler", "AIHandler"), hints: hints, usage: usage, status: status}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func parseUUID(c *gin.Context, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New(field+" must be a valid id"))
		return uuid.Nil, false
	}
	return id, true
}

type hintRequestBody struct {
	ActivityID    string `json:"activityId"`
	Code          string `json:"code"`
	ErrorOutput   string `json:"errorOutput"`
	HintLevel     *int   `json:"hintLevel"`
	Description   string `json:"description"`
	WhatTried     string `json:"whatTried"`
	TimeSpent     int    `json:"timeSpent"`
	Provider      string `json:"provider"`
	AllowFallback *bool  `json:"allowFallback"`
}

// POST /api/ai/hint
func (h *AIHandler) RequestHint(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	var body hintRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	if strings.TrimSpace(body.ActivityID) == "" || strings.TrimSpace(body.Description) == "" {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("activityId and description are required"))
		return
	}
	activityID, ok := parseUUID(c, body.ActivityID, "activityId")
	if !ok {
		return
	}
	allowFallback := true
	if body.AllowFallback != nil {
		allowFallback = *body.AllowFallback
	}

	out, err := h.hints.RequestHint(c.Request.Context(), services.HintInput{
		StudentID:     studentID,
		ActivityID:    activityID,
		Code:          body.Code,
		ErrorOutput:   body.ErrorOutput,
		HintLevel:     body.HintLevel,
		Description:   body.Description,
		WhatTried:     body.WhatTried,
		TimeSpent:     body.TimeSpent,
		Provider:      body.Provider,
		AllowFallback: allowFallback,
	})
	if err != nil {
		response.RespondAPIError(c, err, "Failed to generate hint")
		return
	}
	if !out.Granted() {
		d := out.Decision
		payload := gin.H{
			"success": true,
			"granted": false,
			"reason":  d.Reason,
			"message": d.Message,
			"level":   d.ActualLevel,
		}
		if d.Encouragement != "" {
			payload["encouragement"] = d.Encouragement
		}
		if d.Question != "" {
			payload["question"] = d.Question
		}
		c.JSON(http.StatusOK, payload)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"granted": true,
		"data":    out.Hint,
	})
}

type comprehensionBody struct {
	HintID string `json:"hintId"`
	Answer string `json:"answer"`
}

// POST /api/ai/comprehension
func (h *AIHandler) CheckComprehension(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	var body comprehensionBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.HintID) == "" || strings.TrimSpace(body.Answer) == "" {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("hintId and answer are required"))
		return
	}
	hintID, ok := parseUUID(c, body.HintID, "hintId")
	if !ok {
		return
	}
	res, err := h.hints.CheckComprehension(c.Request.Context(), studentID, hintID, body.Answer)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to check comprehension")
		return
	}
	response.RespondOK(c, res)
}

// GET /api/ai/hints/:id
func (h *AIHandler) ListHints(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	activityID, ok := parseUUID(c, c.Param("id"), "activityId")
	if !ok {
		return
	}
	list, err := h.hints.ListHints(c.Request.Context(), studentID, activityID)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to list hints")
		return
	}
	response.RespondOK(c, list)
}

type feedbackBody struct {
	WasHelpful   *bool `json:"wasHelpful"`
	LedToSuccess *bool `json:"ledToSuccess"`
}

// POST /api/ai/hints/:id/feedback
func (h *AIHandler) Feedback(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	hintID, ok := parseUUID(c, c.Param("id"), "hintId")
	if !ok {
		return
	}
	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	err := h.hints.Feedback(c.Request.Context(), studentID, hintID, services.HintFeedback{
		WasHelpful:   body.WasHelpful,
		LedToSuccess: body.LedToSuccess,
	})
	if err != nil {
		response.RespondAPIError(c, err, "Failed to record feedback")
		return
	}
	response.RespondMessage(c, "Feedback recorded")
}

// GET /api/ai/recommend-level/:activityId?timeSpent=&attempts=
func (h *AIHandler) RecommendLevel(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	activityID, ok := parseUUID(c, c.Param("activityId"), "activityId")
	if !ok {
		return
	}
	timeSpent := queryInt(c, "timeSpent", 0)
	attempts := queryInt(c, "attempts", -1)
	rec, err := h.hints.RecommendLevel(c.Request.Context(), studentID, activityID, timeSpent, attempts)
	if err != nil {
		response.RespondAPIError(c, err, "Failed to recommend level")
		return
	}
	response.RespondOK(c, rec)
}

// GET /api/ai/status
func (h *AIHandler) Status(c *gin.Context) {
	response.RespondOK(c, h.status.Status(c.Request.Context()))
}

// GET /api/ai/usage?days=
func (h *AIHandler) Usage(c *gin.Context) {
	sum, err := h.usage.Summary(c.Request.Context(), queryInt(c, "days", 0))
	if err != nil {
		response.RespondAPIError(c, err, "Failed to load usage")
		return
	}
	response.RespondOK(c, sum)
}

type socraticBody struct {
	ActivityID  string           `json:"activityId"`
	Code        string           `json:"code"`
	ErrorOutput string           `json:"errorOutput"`
	Messages    []engine.Message `json:"messages"`
	Provider    string           `json:"provider"`
}

// POST /api/ai/socratic
//
// Replies stream as server-sent "chunk" events followed by "done". Errors
// that happen before the first chunk are ordinary JSON responses.
func (h *AIHandler) Socratic(c *gin.Context) {
	studentID, ok := callerID(c)
	if !ok {
		return
	}
	var body socraticBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, errors.New("invalid request body"))
		return
	}
	activityID, ok := parseUUID(c, body.ActivityID, "activityId")
	if !ok {
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	out, err := h.hints.Socratic(c.Request.Context(), services.SocraticInput{
		StudentID:   studentID,
		ActivityID:  activityID,
		Code:        body.Code,
		ErrorOutput: body.ErrorOutput,
		History:     body.Messages,
		Provider:    body.Provider,
	}, func(chunk string) {
		start()
		c.SSEvent("chunk", gin.H{"content": chunk})
		c.Writer.Flush()
	})
	switch {
	case err != nil && !started:
		response.RespondAPIError(c, err, "Failed to stream reply")
	case err != nil:
		h.log.Warn("Socratic stream aborted", "student_id", studentID, "error", err)
		c.SSEvent("error", gin.H{"message": "Failed to stream reply"})
		c.Writer.Flush()
	case out.Refusal != nil:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"granted": false,
			"reason":  out.Refusal.Reason,
			"message": out.Refusal.Message,
		})
	default:
		start()
		c.SSEvent("done", gin.H{"provider": out.Provider, "model": out.Model})
		c.Writer.Flush()
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
