package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/coordinator"
	"github.com/sirosfoundation/go-local-server/internal/network"
	"github.com/sirosfoundation/go-local-server/pkg/config"
)

// Controller is the part of the coordinator exposed over HTTP
type Controller interface {
	StartServer()
	StopServer()
	Status() coordinator.Status
}

// NetworkConnectedRequest is the body of POST /api/network/connected
type NetworkConnectedRequest struct {
	Address string `json:"address" binding:"required"`
}

// Handlers aggregates the control API handlers
type Handlers struct {
	controller Controller
	push       *network.PushSource
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance. push is nil unless network
// events are delivered through the API.
func NewHandlers(controller Controller, push *network.PushSource, logger *zap.Logger) *Handlers {
	return &Handlers{
		controller: controller,
		push:       push,
		logger:     logger.Named("handlers"),
	}
}

// Status handles the /status endpoint
func (h *Handlers) Status(c *gin.Context) {
	source := config.NetworkSourcePoll
	if h.push != nil {
		source = config.NetworkSourcePush
	}
	c.JSON(http.StatusOK, StatusResponse{
		Status:        "ok",
		Service:       ServiceName,
		APIVersion:    CurrentAPIVersion,
		NetworkSource: source,
	})
}

// ServerStatus returns the coordinator state
func (h *Handlers) ServerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}

// StartServer asks the coordinator to start the listener. Outcomes are
// delivered to the attached view; the response carries the resulting state.
func (h *Handlers) StartServer(c *gin.Context) {
	if !h.requireView(c) {
		return
	}
	h.controller.StartServer()
	c.JSON(http.StatusOK, h.controller.Status())
}

// StopServer asks the coordinator to stop the listener
func (h *Handlers) StopServer(c *gin.Context) {
	if !h.requireView(c) {
		return
	}
	h.controller.StopServer()
	c.JSON(http.StatusOK, h.controller.Status())
}

// NetworkConnected records a network pushed by an external driver
func (h *Handlers) NetworkConnected(c *gin.Context) {
	if !h.requirePush(c) {
		return
	}
	var req NetworkConnectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	h.push.Connected(req.Address)
	c.JSON(http.StatusOK, h.controller.Status())
}

// NetworkDisconnected records loss of the network pushed by an external driver
func (h *Handlers) NetworkDisconnected(c *gin.Context) {
	if !h.requirePush(c) {
		return
	}
	h.push.Disconnected()
	c.JSON(http.StatusOK, h.controller.Status())
}

// requireView rejects power requests while no view would receive the outcome
func (h *Handlers) requireView(c *gin.Context) bool {
	if h.controller.Status().Attached {
		return true
	}
	c.JSON(http.StatusConflict, gin.H{"error": "no view attached"})
	return false
}

func (h *Handlers) requirePush(c *gin.Context) bool {
	if h.push != nil {
		return true
	}
	c.JSON(http.StatusConflict, gin.H{"error": "network events are observed locally"})
	return false
}
