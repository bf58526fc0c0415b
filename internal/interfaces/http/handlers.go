package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/application/service"
	"github.com/garyjia/process-engine/internal/domain/process"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	processService service.ProcessService
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(processService service.ProcessService, logger Logger) *Handlers {
	return &Handlers{
		processService: processService,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateProcessRequest is the body for POST /api/v1/processes
type CreateProcessRequest struct {
	Type                   string            `json:"type" binding:"required"`
	ActorID                string            `json:"actor_id" binding:"required"`
	Channel                string            `json:"channel"`
	ExternalReference      string            `json:"external_reference"`
	TimeoutOverrideSeconds *int64            `json:"timeout_override_seconds"`
	Data                   map[string]string `json:"data"`
	Stakeholders           map[string]string `json:"stakeholders"`
}

// FireEventRequest is the body for POST /api/v1/processes/:id/events
type FireEventRequest struct {
	Event        string            `json:"event" binding:"required"`
	ActorID      string            `json:"actor_id" binding:"required"`
	RequestType  string            `json:"request_type"`
	Channel      string            `json:"channel"`
	Data         map[string]string `json:"data"`
	Stakeholders map[string]string `json:"stakeholders"`
}

// ProcessResponse represents a process in API responses
type ProcessResponse struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Description       string `json:"description"`
	State             string `json:"state"`
	Channel           string `json:"channel"`
	Expiry            string `json:"expiry,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// TransitionResponse represents one audit record in API responses
type TransitionResponse struct {
	Event     string `json:"event"`
	ActorID   string `json:"actor_id"`
	OldState  string `json:"old_state"`
	NewState  string `json:"new_state"`
	CreatedAt string `json:"created_at"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateProcess handles POST /api/v1/processes
func (h *Handlers) CreateProcess(c *gin.Context) {
	var req CreateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	procType := process.Type(req.Type)
	if !procType.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown process type"})
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid actor_id"})
		return
	}

	channel := process.Channel(req.Channel)
	if req.Channel == "" {
		channel = process.ChannelAPI
	}

	input := service.CreateProcessInput{
		Type:              procType,
		ActorID:           actorID,
		Channel:           channel,
		ExternalReference: req.ExternalReference,
		Data:              toDataMap(req.Data),
		Stakeholders:      toStakeholderMap(req.Stakeholders),
	}
	if req.TimeoutOverrideSeconds != nil {
		override := time.Duration(*req.TimeoutOverrideSeconds) * time.Second
		input.TimeoutOverride = &override
	}

	p, err := h.processService.CreateProcess(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "Failed to create process")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toProcessResponse(p)})
}

// GetProcess handles GET /api/v1/processes/:id
func (h *Handlers) GetProcess(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	p, err := h.processService.GetProcess(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get process")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toProcessResponse(p)})
}

// FindPending handles GET /api/v1/processes with correlation query
// parameters: external_reference plus an optional type.
func (h *Handlers) FindPending(c *gin.Context) {
	externalRef := c.Query("external_reference")
	if externalRef == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "external_reference is required"})
		return
	}

	var (
		p   *process.Process
		err error
	)
	if typeParam := c.Query("type"); typeParam != "" {
		procType := process.Type(typeParam)
		if !procType.IsValid() {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown process type"})
			return
		}
		p, err = h.processService.FindPendingByTypeAndExternalReference(c.Request.Context(), procType, externalRef)
	} else {
		p, err = h.processService.FindPendingByExternalReference(c.Request.Context(), externalRef)
	}
	if err != nil {
		h.respondError(c, err, "Failed to find pending process")
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no pending process"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toProcessResponse(p)})
}

// GetTransitions handles GET /api/v1/processes/:id/transitions
func (h *Handlers) GetTransitions(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	transitions, err := h.processService.GetProcessTransitions(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get transitions")
		return
	}

	responses := make([]TransitionResponse, 0, len(transitions))
	for _, tr := range transitions {
		responses = append(responses, TransitionResponse{
			Event:     string(tr.Event),
			ActorID:   tr.ActorID.String(),
			OldState:  tr.OldState.String(),
			NewState:  tr.NewState.String(),
			CreatedAt: tr.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// FireEvent handles POST /api/v1/processes/:id/events
func (h *Handlers) FireEvent(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req FireEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid actor_id"})
		return
	}

	channel := process.Channel(req.Channel)
	if req.Channel == "" {
		channel = process.ChannelAPI
	}
	requestType := process.RequestType(req.RequestType)
	if req.RequestType == "" {
		requestType = process.RequestTypeCustomerInfoUpdate
	}

	input := service.MakeRequestInput{
		ProcessID:    id,
		ActorID:      actorID,
		RequestType:  requestType,
		RequestState: process.StateComplete,
		Channel:      channel,
		Event:        process.Event(req.Event),
		Data:         toDataMap(req.Data),
		Stakeholders: toStakeholderMap(req.Stakeholders),
	}

	if err := h.processService.MakeRequest(c.Request.Context(), input); err != nil {
		h.respondError(c, err, "Failed to process event")
		return
	}

	p, err := h.processService.GetProcess(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to reload process")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toProcessResponse(p)})
}

func (h *Handlers) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid process id"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps engine errors to HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error, logMsg string) {
	h.logger.Error(logMsg, "error", err)

	switch {
	case errors.Is(err, process.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "process not found"})
	case errors.Is(err, process.ErrInvalidTransition):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "event not allowed in current state"})
	case errors.Is(err, process.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "concurrent modification, retry"})
	case errors.Is(err, process.ErrMissingData):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func toProcessResponse(p *process.Process) ProcessResponse {
	resp := ProcessResponse{
		ID:                p.PublicID.String(),
		Type:              p.Type.String(),
		Description:       p.Description,
		State:             p.State.String(),
		Channel:           string(p.Channel),
		ExternalReference: p.ExternalReference,
		CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !p.Expiry.IsZero() {
		resp.Expiry = p.Expiry.UTC().Format(time.RFC3339)
	}
	return resp
}

func toDataMap(in map[string]string) map[process.RequestDataName]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[process.RequestDataName]string, len(in))
	for k, v := range in {
		out[process.RequestDataName(k)] = v
	}
	return out
}

func toStakeholderMap(in map[string]string) map[process.StakeholderType]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[process.StakeholderType]string, len(in))
	for k, v := range in {
		out[process.StakeholderType(k)] = v
	}
	return out
}
