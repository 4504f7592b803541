package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/auth"
)

func (h *handlers) listCategories(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *handlers) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	cat, err := h.categories.Create(c.Request.Context(), auth.UserID(c), deref(req.Name), deref(req.Color), deref(req.Icon))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *handlers) updateCategory(c *gin.Context) {
	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	cat, err := h.categories.Update(c.Request.Context(), auth.UserID(c), c.Param("id"), req.patch())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *handlers) deleteCategory(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	writeMessage(c, "Category deleted successfully")
}
