// api/handlers/funnel_handlers.go
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"funnelboard/api/models"
	"funnelboard/api/store"
)

type FunnelHandlers struct {
	FunnelStore *store.FunnelStore
}

func NewFunnelHandlers(funnels *store.FunnelStore) *FunnelHandlers {
	return &FunnelHandlers{FunnelStore: funnels}
}

func (h *FunnelHandlers) ListFunnels(c *gin.Context) {
	funnels, err := h.FunnelStore.ListFunnels(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		log.Printf("Error listing funnels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list funnels"})
		return
	}
	c.JSON(http.StatusOK, funnels)
}

func (h *FunnelHandlers) CreateFunnel(c *gin.Context) {
	var req models.CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	funnel, err := h.FunnelStore.CreateFunnel(c.Request.Context(), req.ProjectID, req.Name, req.Description, req.Stages)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFunnelDefinition) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Error creating funnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create funnel"})
		return
	}

	log.Printf("Funnel created: ID=%s, Name=%s, Stages=%d", funnel.ID, funnel.Name, len(funnel.Stages))
	c.JSON(http.StatusCreated, funnel)
}

func (h *FunnelHandlers) GetFunnel(c *gin.Context) {
	funnel, err := h.FunnelStore.GetFunnel(c.Request.Context(), c.Param("funnel_id"))
	if err != nil {
		if errors.Is(err, store.ErrFunnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
			return
		}
		log.Printf("Error loading funnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load funnel"})
		return
	}
	c.JSON(http.StatusOK, funnel)
}

func (h *FunnelHandlers) UpdateFunnel(c *gin.Context) {
	var req models.UpdateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	funnel, err := h.FunnelStore.UpdateFunnel(c.Request.Context(), c.Param("funnel_id"), req.Name, req.Description, req.Stages)
	if err != nil {
		if errors.Is(err, store.ErrFunnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
			return
		}
		if errors.Is(err, models.ErrInvalidFunnelDefinition) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Error updating funnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update funnel"})
		return
	}
	c.JSON(http.StatusOK, funnel)
}

func (h *FunnelHandlers) DeleteFunnel(c *gin.Context) {
	err := h.FunnelStore.DeleteFunnel(c.Request.Context(), c.Param("funnel_id"))
	if err != nil {
		if errors.Is(err, store.ErrFunnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
			return
		}
		log.Printf("Error deleting funnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete funnel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Funnel deleted"})
}
