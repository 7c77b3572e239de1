package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calebreid/mapweave/internal/middleware"
	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	"github.com/calebreid/mapweave/internal/services"
	"github.com/calebreid/mapweave/pkg/errors"
	"github.com/calebreid/mapweave/pkg/response"
)

// SharingHandler exposes invitation and share endpoints.
type SharingHandler struct {
	sharing *services.SharingService
}

func NewSharingHandler(sharing *services.SharingService) *SharingHandler {
	return &SharingHandler{sharing: sharing}
}

type createInvitationRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Permission string     `json:"permission" validate:"required,permission"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

type invitationDTO struct {
	ID           string     `json:"id"`
	MapID        string     `json:"map_id"`
	InvitedEmail string     `json:"invited_email"`
	Permission   string     `json:"permission"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	Expired      bool       `json:"expired"`
}

type invitationCreatedResponse struct {
	Invitation invitationDTO `json:"invitation"`
	Token      string        `json:"token"`
}

func toInvitationDTO(invitation *models.MapInvitation) invitationDTO {
	return invitationDTO{
		ID:           invitation.ID,
		MapID:        invitation.MapID,
		InvitedEmail: invitation.InvitedEmail,
		Permission:   string(invitation.Permission),
		Status:       string(invitation.Status),
		CreatedAt:    invitation.CreatedAt,
		ExpiresAt:    invitation.ExpiresAt,
		RespondedAt:  invitation.RespondedAt,
		Expired:      invitation.Expired(time.Now().UTC()),
	}
}

// POST /api/maps/:id/invitations
func (h *SharingHandler) CreateInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, token, err := h.sharing.CreateInvitation(requestContext(c), userID, c.Param("id"), services.CreateInvitationInput{
		Email:      req.Email,
		Permission: permissions.Level(req.Permission),
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	// The raw token is returned exactly once. Only its hash is stored.
	response.Success(c, http.StatusCreated, invitationCreatedResponse{
		Invitation: toInvitationDTO(invitation),
		Token:      token,
	})
}

// GET /api/maps/:id/invitations
func (h *SharingHandler) ListInvitations(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	invitations, err := h.sharing.ListInvitations(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		dtos = append(dtos, toInvitationDTO(&invitations[i]))
	}
	response.Success(c, http.StatusOK, dtos)
}

// GET /api/invitations/lookup?token=...
func (h *SharingHandler) LookupInvitation(c *gin.Context) {
	invitation, err := h.sharing.InvitationByToken(requestContext(c), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	dto := toInvitationDTO(invitation)
	payload := gin.H{"invitation": dto}
	if invitation.Map != nil {
		payload["map_name"] = invitation.Map.Name
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/invitations/:id/accept
func (h *SharingHandler) AcceptInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	email := c.GetString(middleware.CtxUserEmailKey)
	if userID == "" || email == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	share, err := h.sharing.AcceptInvitation(requestContext(c), c.Param("id"), userID, email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, share)
}

// POST /api/invitations/:id/decline
func (h *SharingHandler) DeclineInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	email := c.GetString(middleware.CtxUserEmailKey)
	if userID == "" || email == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sharing.DeclineInvitation(requestContext(c), c.Param("id"), userID, email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "invitation declined"})
}

// POST /api/invitations/:id/revoke
func (h *SharingHandler) RevokeInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.sharing.RevokeInvitation(requestContext(c), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "invitation revoked"})
}

// DELETE /api/invitations/:id
func (h *SharingHandler) DeleteInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.sharing.DeleteInvitation(requestContext(c), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "invitation deleted"})
}

// GET /api/maps/:id/shares
func (h *SharingHandler) ListShares(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	shares, err := h.sharing.ListShares(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, shares)
}

type updateShareRequest struct {
	Permission string `json:"permission" validate:"required,permission"`
}

// PATCH /api/shares/:id
func (h *SharingHandler) UpdateShare(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var req updateShareRequest
	if !bindAndValidate(c, &req) {
		return
	}

	share, err := h.sharing.UpdateSharePermission(requestContext(c), c.Param("id"), userID, permissions.Level(req.Permission))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, share)
}

// POST /api/shares/:id/revoke
func (h *SharingHandler) RevokeShare(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.sharing.RevokeShare(requestContext(c), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "share revoked"})
}
