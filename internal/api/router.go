package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/download"
	"github.com/ytget/yt-downloader-api/internal/jobs"
)

// Options configures the router
type Options struct {
	AppName     string
	DownloadDir string
	Mode        string
	CORSOrigins []string
	Logger      logrus.FieldLogger
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(svc download.Downloader, projection *jobs.Projection, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := NewHandler(svc, projection, opts.DownloadDir, logger)
	h.appName = opts.AppName

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggerMiddleware(logger))
	r.Use(corsMiddleware(opts.CORSOrigins))

	r.GET("/", h.root)
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/info", h.info)
	api.POST("/queue", h.queue)
	api.GET("/jobs", h.listJobs)
	api.GET("/jobs/:id", h.getJob)
	api.DELETE("/jobs/:id", h.cancelJob)
	api.GET("/stats", h.stats)
	api.GET("/download/:id", h.downloadFile)
	api.GET("/ws/jobs/:id", h.streamJob)

	return r
}
