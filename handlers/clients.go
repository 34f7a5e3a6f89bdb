package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
)

type ClientHandler struct {
	store *store.Store
	Mutations
}

func NewClientHandler(s *store.Store, m Mutations) *ClientHandler {
	return &ClientHandler{store: s, Mutations: m}
}

type CreateClientRequest struct {
	Name    string  `json:"name" binding:"required,max=255"`
	Email   *string `json:"email" binding:"omitempty,email|len=0"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Company *string `json:"company" binding:"omitempty,max=255"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

func (h *ClientHandler) List(c *gin.Context) {
	var f store.ClientFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	clients, err := h.store.Clients.List(c.Request.Context(), middleware.OrgID(c), f)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.store.Clients.Get(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, h.Log, &store.ValidationError{Field: "name", Message: "is required"})
		return
	}
	client := &models.Client{
		Name:    name,
		Email:   store.Optional(req.Email),
		Phone:   store.Optional(req.Phone),
		Company: store.Optional(req.Company),
		Address: store.Optional(req.Address),
		Notes:   store.Optional(req.Notes),
	}
	if err := h.store.Clients.Create(c.Request.Context(), middleware.OrgID(c), client); err != nil {
		h.failed(c, "Failed to create client", err)
		return
	}
	h.succeeded(c, "Client created", client.Name+" was added")
	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	var patch store.ClientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	client, err := h.store.Clients.Update(c.Request.Context(), middleware.OrgID(c), c.Param("id"), patch)
	if err != nil {
		h.failed(c, "Failed to update client", err)
		return
	}
	h.succeeded(c, "Client updated", client.Name+" was saved")
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.store.Clients.Delete(c.Request.Context(), middleware.OrgID(c), c.Param("id")); err != nil {
		h.failed(c, "Failed to delete client", err)
		return
	}
	h.succeeded(c, "Client deleted", "The client was removed")
	c.Status(http.StatusNoContent)
}

// ClientOverview is a client with everything that references it.
type ClientOverview struct {
	Client   *models.Client   `json:"client"`
	Projects []models.Project `json:"projects"`
	Invoices []models.Invoice `json:"invoices"`
	Notes    []models.Note    `json:"notes"`
}

func (h *ClientHandler) Overview(c *gin.Context) {
	ctx, org, id := c.Request.Context(), middleware.OrgID(c), c.Param("id")
	client, err := h.store.Clients.Get(ctx, org, id)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	out := ClientOverview{Client: client}
	if out.Projects, err = h.store.Projects.List(ctx, org, store.ProjectFilter{ClientID: id}); err != nil {
		respondError(c, h.Log, err)
		return
	}
	if out.Invoices, err = h.store.Invoices.List(ctx, org, store.InvoiceFilter{ClientID: id}); err != nil {
		respondError(c, h.Log, err)
		return
	}
	if out.Notes, err = h.store.Notes.List(ctx, org, store.NoteFilter{ClientID: id}); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
