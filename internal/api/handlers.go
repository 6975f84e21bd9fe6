package api

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/download"
	"github.com/ytget/yt-downloader-api/internal/jobs"
	"github.com/ytget/yt-downloader-api/internal/model"
	"github.com/ytget/yt-downloader-api/internal/platform"
)

// Response details
const (
	detailJobNotFound   = "Job not found"
	detailNotCompleted  = "Job not completed"
	detailFileNotFound  = "File not found"
	detailQueueRejected = "Download queue is unavailable"
)

// Handler serves the HTTP API
type Handler struct {
	svc         download.Downloader
	projection  *jobs.Projection
	downloadDir string
	appName     string
	log         logrus.FieldLogger
}

// NewHandler creates a handler backed by svc and projection
func NewHandler(svc download.Downloader, projection *jobs.Projection, downloadDir string, logger logrus.FieldLogger) *Handler {
	return &Handler{
		svc:         svc,
		projection:  projection,
		downloadDir: downloadDir,
		log:         logger.WithField("component", "api"),
	}
}

type infoRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type queueResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

func detail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"detail": msg})
}

func (h *Handler) root(c *gin.Context) {
	name := h.appName
	if name == "" {
		name = "Downloader API"
	}
	c.JSON(http.StatusOK, gin.H{"message": name + " is running", "status": "ok"})
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	usage, err := platform.DiskUsage(c.Request.Context(), h.downloadDir)
	if err != nil {
		h.log.WithError(err).Debug("Disk usage unavailable")
	} else {
		body["disk"] = usage
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) info(c *gin.Context) {
	var req infoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.svc.FetchMetadata(c.Request.Context(), req.URL)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) queue(c *gin.Context) {
	var req model.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.svc.SubmitDownload(req)
	if err != nil {
		if errors.Is(err, download.ErrQueueFull) || errors.Is(err, download.ErrPoolStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": detailQueueRejected, "job_id": id})
			return
		}
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, queueResponse{JobID: id, Status: model.JobStatusQueued})
}

func (h *Handler) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.projection.List())
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.projection.Poll(c.Param("id"))
	if err != nil {
		detail(c, http.StatusNotFound, detailJobNotFound)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Cancel(id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			detail(c, http.StatusNotFound, detailJobNotFound)
		case errors.Is(err, jobs.ErrInvalidTransition):
			detail(c, http.StatusConflict, err.Error())
		default:
			detail(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	job, err := h.projection.Poll(id)
	if err != nil {
		detail(c, http.StatusNotFound, detailJobNotFound)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

func (h *Handler) downloadFile(c *gin.Context) {
	id := c.Param("id")
	job, err := h.projection.Poll(id)
	if err != nil {
		detail(c, http.StatusNotFound, detailJobNotFound)
		return
	}
	if job.Status != model.JobStatusCompleted {
		detail(c, http.StatusBadRequest, detailNotCompleted)
		return
	}

	path, err := platform.FindJobOutput(h.downloadDir, id, job.PayloadString(model.PayloadFilePath))
	if err != nil {
		h.log.WithFields(logrus.Fields{"job_id": id, "error": err}).Warn("Job output missing")
		detail(c, http.StatusNotFound, detailFileNotFound)
		return
	}

	name := job.PayloadString(model.PayloadFilename)
	if name == "" {
		name = filepath.Base(path)
	}
	c.FileAttachment(path, name)
}
