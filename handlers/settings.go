package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clientbook/identity"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/store"
)

// SettingsHandler serves the organization, the caller's profile and the member list.
type SettingsHandler struct {
	identity *identity.Service
	store    *store.Store
	Mutations
}

func NewSettingsHandler(svc *identity.Service, s *store.Store, m Mutations) *SettingsHandler {
	return &SettingsHandler{identity: svc, store: s, Mutations: m}
}

func (h *SettingsHandler) GetOrg(c *gin.Context) {
	org, err := h.store.Orgs.Get(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *SettingsHandler) UpdateOrg(c *gin.Context) {
	var patch store.OrgPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	org, err := h.store.Orgs.Update(c.Request.Context(), middleware.OrgID(c), patch)
	if err != nil {
		h.failed(c, "Failed to update organization", err)
		return
	}
	h.succeeded(c, "Organization updated", org.Name+" was saved")
	c.JSON(http.StatusOK, org)
}

func (h *SettingsHandler) UpdateProfile(c *gin.Context) {
	var req identity.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	profile, err := h.identity.UpdateProfile(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.failed(c, "Failed to update profile", err)
		return
	}
	h.succeeded(c, "Profile updated", "Your profile was saved")
	c.JSON(http.StatusOK, profile)
}

func (h *SettingsHandler) ChangePassword(c *gin.Context) {
	var req identity.PasswordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.identity.ChangePassword(c.Request.Context(), middleware.UserID(c), req); err != nil {
		h.failed(c, "Failed to change password", err)
		return
	}
	h.succeeded(c, "Password changed", "Your password was updated")
	c.Status(http.StatusNoContent)
}

func (h *SettingsHandler) ListMembers(c *gin.Context) {
	members, err := h.identity.ListMembers(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *SettingsHandler) CreateMember(c *gin.Context) {
	var req identity.MemberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	member, err := h.identity.CreateMember(c.Request.Context(), middleware.OrgID(c), req)
	if err != nil {
		h.failed(c, "Failed to add member", err)
		return
	}
	h.succeeded(c, "Member added", member.Email+" can now sign in")
	c.JSON(http.StatusCreated, member)
}
