package handler

import (
	"net/http"

	"earnx/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	catalog *service.TaskCatalog
}

func NewTaskHandler(catalog *service.TaskCatalog) *TaskHandler {
	return &TaskHandler{catalog: catalog}
}

// List handles GET /tasks.
func (h *TaskHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.catalog.List()})
}
