package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MarcoPoloResearchLab/chatroom/internal/chat"
	"github.com/MarcoPoloResearchLab/chatroom/internal/ids"
	"github.com/MarcoPoloResearchLab/chatroom/internal/metrics"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
	"github.com/MarcoPoloResearchLab/chatroom/internal/uploads"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// UploadsRoute is the URL prefix under which stored images are served.
	UploadsRoute = "/uploads"

	defaultMessageRate  = rate.Limit(5)
	defaultMessageBurst = 20
	multipartOverhead   = 1 << 20
)

var (
	errMissingPipeline   = errors.New("chat pipeline dependency required")
	errMissingHub        = errors.New("hub dependency required")
	errMissingUploads    = errors.New("uploads dependency required")
	errMissingIDProvider = errors.New("connection id provider required")
)

// Pipeline is the chat surface consumed by the transport.
type Pipeline interface {
	Dispatcher
	HandleConnect(id presence.ConnectionID) string
	HandleDisconnect(id presence.ConnectionID)
	History(ctx context.Context) ([]chat.MessagePayload, error)
}

// Uploader stores an image and returns its URL.
type Uploader interface {
	Save(filename string, content io.Reader) (string, error)
}

type Dependencies struct {
	Pipeline       Pipeline
	Hub            *Hub
	Uploads        Uploader
	IDProvider     ids.Provider
	Logger         *zap.Logger
	StaticDir      string
	UploadsDir     string
	MaxUploadBytes int64
	MessageRate    rate.Limit
	MessageBurst   int
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Pipeline == nil {
		return nil, errMissingPipeline
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}
	if deps.Uploads == nil {
		return nil, errMissingUploads
	}
	if deps.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	messageRate := deps.MessageRate
	if messageRate <= 0 {
		messageRate = defaultMessageRate
	}
	messageBurst := deps.MessageBurst
	if messageBurst <= 0 {
		messageBurst = defaultMessageBurst
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		pipeline:       deps.Pipeline,
		hub:            deps.Hub,
		uploads:        deps.Uploads,
		ids:            deps.IDProvider,
		logger:         logger,
		maxUploadBytes: deps.MaxUploadBytes,
		messageRate:    messageRate,
		messageBurst:   messageBurst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router.GET("/ws", handler.handleWebSocket)
	router.GET("/history", handler.handleHistory)
	router.POST("/upload", handler.handleUpload)
	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.UploadsDir != "" {
		router.Static(UploadsRoute, deps.UploadsDir)
	}
	if deps.StaticDir != "" {
		router.Static("/static", deps.StaticDir)
		index := filepath.Join(deps.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			router.StaticFile("/", index)
		}
	}

	return router, nil
}

type httpHandler struct {
	pipeline       Pipeline
	hub            *Hub
	uploads        Uploader
	ids            ids.Provider
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	maxUploadBytes int64
	messageRate    rate.Limit
	messageBurst   int
}

func (h *httpHandler) handleWebSocket(c *gin.Context) {
	rawID, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("failed to issue connection id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection_id_failed"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connection := newClient(presence.ConnectionID(rawID), conn, c.Request.RemoteAddr, rate.NewLimiter(h.messageRate, h.messageBurst))
	h.hub.register(connection)
	defer func() {
		h.hub.unregister(connection.id)
		h.pipeline.HandleDisconnect(connection.id)
	}()

	go connection.writePump(h.logger)
	h.pipeline.HandleConnect(connection.id)
	connection.readPump(c.Request.Context(), h.pipeline, h.logger)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	history, err := h.pipeline.History(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_unavailable"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_file"})
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_file"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}
	defer file.Close()

	url, err := h.uploads.Save(header.Filename, file)
	switch {
	case errors.Is(err, uploads.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_file_type"})
		return
	case errors.Is(err, uploads.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	case err != nil:
		h.logger.Error("failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}

	metrics.UploadsStored.Inc()
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.hub.Len()})
}
