// api/handlers/project_handlers.go
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"funnelboard/api/models"
	"funnelboard/api/store"
)

type ProjectHandlers struct {
	ProjectStore *store.ProjectStore
}

func NewProjectHandlers(projects *store.ProjectStore) *ProjectHandlers {
	return &ProjectHandlers{ProjectStore: projects}
}

// ListProjects returns all projects with API keys masked. Full keys are only
// shown once, in the creation response.
func (h *ProjectHandlers) ListProjects(c *gin.Context) {
	projects, err := h.ProjectStore.ListProjects(c.Request.Context())
	if err != nil {
		log.Printf("Error listing projects: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}

	for i := range projects {
		projects[i].APIKey = projects[i].MaskedAPIKey()
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandlers) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	project, err := h.ProjectStore.CreateProject(c.Request.Context(), req.Name, req.Surface)
	if err != nil {
		log.Printf("Error creating project: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	log.Printf("Project created: ID=%s, Name=%s", project.ID, project.Name)
	c.JSON(http.StatusCreated, project)
}
