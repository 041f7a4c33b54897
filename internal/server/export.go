package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/export"
	"github.com/joseph-ayodele/idverify/internal/logging"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportTasks streams retained task records as an XLSX attachment.
// Optional query: status, from_date and to_date (YYYY-MM-DD, to_date inclusive).
func (h *Handler) ExportTasks(c *gin.Context) {
	logger := logging.WithOperation(h.logger, "export", common.RequestIDFromContext(c.Request.Context()))

	filter, err := parseExportFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	xlsx, rows, err := h.exporter.ExportTasksXLSX(c.Request.Context(), filter)
	if err != nil {
		logger.Error("export.xlsx.failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "INTERNAL", "export failed")
		return
	}

	name := fmt.Sprintf("verification-tasks-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("X-Export-Rows", fmt.Sprint(rows))
	c.Data(http.StatusOK, xlsxContentType, xlsx)
}

func parseExportFilter(c *gin.Context) (export.Filter, error) {
	var f export.Filter

	if s := strings.TrimSpace(c.Query("status")); s != "" {
		switch st := constants.TaskStatus(strings.ToLower(s)); st {
		case constants.TaskStatusQueued, constants.TaskStatusProcessing, constants.TaskStatusCompleted, constants.TaskStatusFailed:
			f.Status = st
		default:
			return f, errors.New("status must be one of queued, processing, completed, failed")
		}
	}
	if fd := strings.TrimSpace(c.Query("from_date")); fd != "" {
		t, err := time.Parse("2006-01-02", fd)
		if err != nil {
			return f, errors.New("from_date must be YYYY-MM-DD")
		}
		f.From = t
	}
	if td := strings.TrimSpace(c.Query("to_date")); td != "" {
		t, err := time.Parse("2006-01-02", td)
		if err != nil {
			return f, errors.New("to_date must be YYYY-MM-DD")
		}
		f.To = t.AddDate(0, 0, 1)
	}
	return f, nil
}
