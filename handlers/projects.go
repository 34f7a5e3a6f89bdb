package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
)

type ProjectHandler struct {
	store *store.Store
	Mutations
}

func NewProjectHandler(s *store.Store, m Mutations) *ProjectHandler {
	return &ProjectHandler{store: s, Mutations: m}
}

type CreateProjectRequest struct {
	ClientID    string               `json:"client_id" binding:"required"`
	Name        string               `json:"name" binding:"required,max=255"`
	Description *string              `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	StartDate   string               `json:"start_date"`
	EndDate     string               `json:"end_date"`
	Budget      *decimal.Decimal     `json:"budget"`
}

func (r CreateProjectRequest) project() (*models.Project, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, &store.ValidationError{Field: "name", Message: "is required"}
	}
	start, err := store.ParseDate("start_date", r.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := store.ParseDate("end_date", r.EndDate)
	if err != nil {
		return nil, err
	}
	return &models.Project{
		ClientID:    r.ClientID,
		Name:        name,
		Description: r.Description,
		Status:      r.Status,
		StartDate:   start,
		EndDate:     end,
		Budget:      r.Budget,
	}, nil
}

func (h *ProjectHandler) List(c *gin.Context) {
	var f store.ProjectFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	projects, err := h.store.Projects.List(c.Request.Context(), middleware.OrgID(c), f)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.store.Projects.Get(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := req.project()
	if err == nil {
		err = h.store.Projects.Create(c.Request.Context(), middleware.OrgID(c), project)
	}
	if err != nil {
		h.failed(c, "Failed to create project", err)
		return
	}
	h.succeeded(c, "Project created", project.Name+" was added")
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var patch store.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	project, err := h.store.Projects.Update(c.Request.Context(), middleware.OrgID(c), c.Param("id"), patch)
	if err != nil {
		h.failed(c, "Failed to update project", err)
		return
	}
	h.succeeded(c, "Project updated", project.Name+" was saved")
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.store.Projects.Delete(c.Request.Context(), middleware.OrgID(c), c.Param("id")); err != nil {
		h.failed(c, "Failed to delete project", err)
		return
	}
	h.succeeded(c, "Project deleted", "The project was removed")
	c.Status(http.StatusNoContent)
}
