package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spendwise/internal/auth"
	"spendwise/internal/core"
)

func (h *handlers) listExpenses(c *gin.Context) {
	filter, err := parseListFilter(c.Request.URL.Query())
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := h.expenses.List(c.Request.Context(), auth.UserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getExpense(c *gin.Context) {
	view, err := h.expenses.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) createExpense(c *gin.Context) {
	var req expenseRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	in, err := req.newExpense()
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := h.expenses.Create(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *handlers) updateExpense(c *gin.Context) {
	var req expenseRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := h.expenses.Update(c.Request.Context(), auth.UserID(c), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) deleteExpense(c *gin.Context) {
	if err := h.expenses.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	writeMessage(c, "Expense deleted successfully")
}

// exportExpenses downloads every expense matching the listing filters.
func (h *handlers) exportExpenses(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		writeError(c, core.ErrInvalidExportFormat)
		return
	}

	filter, err := parseListFilter(c.Request.URL.Query())
	if err != nil {
		writeError(c, err)
		return
	}

	views, err := h.expenses.Export(c.Request.Context(), auth.UserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("expenses-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))

	switch format {
	case "xlsx":
		c.Header("Content-Type", contentTypeXLSX)
		c.Status(http.StatusOK)
		err = writeXLSX(c.Writer, views)
	default:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		err = writeCSV(c.Writer, views)
	}
	if err != nil {
		// Headers are gone; all we can do is record the failure.
		_ = c.Error(err)
	}
}
