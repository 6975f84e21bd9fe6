package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/jobs"
	"github.com/ytget/yt-downloader-api/internal/model"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// streamJob pushes job snapshots until the job finishes or the client leaves
func (h *Handler) streamJob(c *gin.Context) {
	id := c.Param("id")
	log := h.log.WithField("job_id", id)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readPump(conn, cancel, log)

	err = h.projection.Stream(ctx, id, func(job model.Job) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(job)
	})
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(streamError{Status: "error", Error: detailJobNotFound})
	case err != nil:
		log.WithError(err).Debug("Status stream ended")
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// readPump discards client messages and cancels the stream once the
// connection is closed
func readPump(conn *websocket.Conn, cancel context.CancelFunc, log logrus.FieldLogger) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}
