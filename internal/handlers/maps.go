package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebreid/mapweave/internal/middleware"
	"github.com/calebreid/mapweave/internal/services"
	"github.com/calebreid/mapweave/pkg/errors"
	"github.com/calebreid/mapweave/pkg/response"
)

// MapHandler exposes map lifecycle endpoints.
type MapHandler struct {
	maps *services.MapService
}

func NewMapHandler(maps *services.MapService) *MapHandler {
	return &MapHandler{maps: maps}
}

type createMapRequest struct {
	Name        string         `json:"name" validate:"required,max=256"`
	Description string         `json:"description" validate:"omitempty,max=2048"`
	Metadata    map[string]any `json:"metadata"`
}

type updateMapRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=256"`
	Description *string        `json:"description" validate:"omitempty,max=2048"`
	Metadata    map[string]any `json:"metadata"`
}

// POST /api/maps
func (h *MapHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createMapRequest
	if !bindAndValidate(c, &req) {
		return
	}

	record, err := h.maps.Create(requestContext(c), userID, services.CreateMapInput{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, record)
}

// GET /api/maps
func (h *MapHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	maps, err := h.maps.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, maps)
}

// GET /api/maps/:id
func (h *MapHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	record, err := h.maps.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// PATCH /api/maps/:id
func (h *MapHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var req updateMapRequest
	if !bindAndValidate(c, &req) {
		return
	}

	record, err := h.maps.Update(requestContext(c), userID, c.Param("id"), services.UpdateMapInput{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// DELETE /api/maps/:id
func (h *MapHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.maps.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "map deleted"})
}
