package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/async"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/export"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/ocr"
	"github.com/joseph-ayodele/idverify/internal/store"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

// multipart overhead allowed on top of the file itself
const formOverheadBytes = 1 << 20

// TaskQueue is the part of async.Queue the handlers use.
type TaskQueue interface {
	Submit(ctx context.Context, req verify.Request) (string, error)
	Poll(taskID string) (store.TaskRecord, error)
	Stats() async.Stats
}

// EngineStatus answers health and diagnostics questions about the OCR engine.
type EngineStatus interface {
	Available(ctx context.Context) bool
	Info(ctx context.Context) ocr.EngineInfo
}

// TaskExporter renders retained records as XLSX.
type TaskExporter interface {
	ExportTasksXLSX(ctx context.Context, filter export.Filter) ([]byte, int, error)
}

type Handler struct {
	queue          TaskQueue
	engine         EngineStatus
	exporter       TaskExporter
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandler(queue TaskQueue, engine EngineStatus, exporter TaskExporter, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.DefaultMaxUploadBytes
	}
	return &Handler{
		queue:          queue,
		engine:         engine,
		exporter:       exporter,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("http"),
	}
}

// SubmitVerification accepts a document image plus the claimed fields and
// answers 202 with the task id as soon as the task is queued.
func (h *Handler) SubmitVerification(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.WithOperation(h.logger, "submit", common.RequestIDFromContext(ctx))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverheadBytes)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		fail(c, http.StatusBadRequest, "INVALID_FORM", "expected a multipart form upload")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No selected file")
		return
	}
	if header.Size > h.maxUploadBytes {
		h.tooLarge(c)
		return
	}

	data, err := readUpload(file, h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			h.tooLarge(c)
			return
		}
		logger.Error("reading upload failed", zap.Error(err))
		fail(c, http.StatusBadRequest, "INVALID_FORM", "unable to read uploaded file")
		return
	}

	req := verify.Request{
		Image:     data,
		Filename:  header.Filename,
		LastName:  strings.TrimSpace(c.Request.FormValue("last_name")),
		Birthday:  strings.TrimSpace(c.Request.FormValue("birthday")),
		StudentID: strings.TrimSpace(c.Request.FormValue("student_id")),
	}

	taskID, err := h.queue.Submit(ctx, req)
	if err != nil {
		status := common.HTTPStatus(err)
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			logger.Error("submit failed", zap.Error(err))
		} else {
			logger.Info("submit rejected", zap.Int("status", status), zap.Error(err))
		}
		fail(c, status, common.ErrorCode(err, "INTERNAL"), errorMessage(err))
		return
	}

	logger.Info("verification accepted",
		zap.String("task_id", taskID),
		zap.String("subject", common.SubjectFromContext(ctx)),
	)
	c.Header("Location", "/api/verify_status/"+taskID)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": taskID,
		"status":  constants.TaskStatusQueued,
	})
}

// VerificationStatus returns the task record as stored, or 404 not_found for
// unknown and expired ids.
func (h *Handler) VerificationStatus(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("task_id"))
	if v := common.NewValidator().Field("task_id", taskID, common.UUID); v.HasErrors() {
		c.JSON(http.StatusNotFound, gin.H{"task_id": taskID, "status": constants.StatusNotFound})
		return
	}

	rec, err := h.queue.Poll(taskID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"task_id": taskID, "status": constants.StatusNotFound})
			return
		}
		logging.WithOperation(h.logger, "poll", common.RequestIDFromContext(c.Request.Context())).
			Error("poll failed", zap.String("task_id", taskID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "INTERNAL", "unable to read task")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Health always answers 200 so load balancers keep routing while the engine recovers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	engine := "unavailable"
	if h.engine != nil && h.engine.Available(ctx) {
		engine = "available"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"engine": engine,
		"queue":  h.queue.Stats(),
	})
}

func (h *Handler) DebugEngine(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusOK, ocr.EngineInfo{Name: "tesseract", Error: "engine not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, h.engine.Info(ctx))
}

func (h *Handler) tooLarge(c *gin.Context) {
	fail(c, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
		fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUploadBytes))
}

var errUploadTooLarge = errors.New("upload too large")

func readUpload(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      message,
		"error_code": code,
	})
}

func errorMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
