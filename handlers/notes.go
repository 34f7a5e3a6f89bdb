package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
)

type NoteHandler struct {
	store *store.Store
	Mutations
}

func NewNoteHandler(s *store.Store, m Mutations) *NoteHandler {
	return &NoteHandler{store: s, Mutations: m}
}

type CreateNoteRequest struct {
	Title     string  `json:"title" binding:"required,max=255"`
	Content   string  `json:"content" binding:"required"`
	ClientID  *string `json:"client_id"`
	ProjectID *string `json:"project_id"`
	InvoiceID *string `json:"invoice_id"`
}

func (h *NoteHandler) List(c *gin.Context) {
	var f store.NoteFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	notes, err := h.store.Notes.List(c.Request.Context(), middleware.OrgID(c), f)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.store.Notes.Get(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) Create(c *gin.Context) {
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		h.failed(c, "Failed to create note", &store.ValidationError{Field: "title", Message: "is required"})
		return
	}
	note := &models.Note{
		Title:     title,
		Content:   req.Content,
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		InvoiceID: req.InvoiceID,
		CreatedBy: middleware.UserID(c),
	}
	if err := h.store.Notes.Create(c.Request.Context(), middleware.OrgID(c), note); err != nil {
		h.failed(c, "Failed to create note", err)
		return
	}
	h.succeeded(c, "Note created", note.Title+" was added")
	c.JSON(http.StatusCreated, note)
}

func (h *NoteHandler) Update(c *gin.Context) {
	var patch store.NotePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	note, err := h.store.Notes.Update(c.Request.Context(), middleware.OrgID(c), c.Param("id"), patch)
	if err != nil {
		h.failed(c, "Failed to update note", err)
		return
	}
	h.succeeded(c, "Note updated", note.Title+" was saved")
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.store.Notes.Delete(c.Request.Context(), middleware.OrgID(c), c.Param("id")); err != nil {
		h.failed(c, "Failed to delete note", err)
		return
	}
	h.succeeded(c, "Note deleted", "The note was removed")
	c.Status(http.StatusNoContent)
}
