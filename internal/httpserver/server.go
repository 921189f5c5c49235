package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cprmachine/cprd/internal/model"
	"github.com/gin-gonic/gin"
)

// PreviewSource encodes the latest camera preview frame.
type PreviewSource interface {
	PreviewJPEG(maxWidth int) ([]byte, bool, error)
}

// Server provides the status page and a small JSON API over the device.
type Server struct {
	addr      string
	status    model.StatusSource
	preview   PreviewSource
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP status server. preview may be nil.
func NewServer(addr string, status model.StatusSource, preview PreviewSource) *Server {
	if addr == "" {
		addr = "0.0.0.0:8000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		status:  status,
		preview: preview,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", s.handleIndex)
	r.GET("/record", s.handleRecord)
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.GET("/preview.jpg", s.handlePreview)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.routes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(recordPage))
}

// handleRecord serves the counters polled by the status page. start_time is
// null while no run is active.
func (s *Server) handleRecord(c *gin.Context) {
	snap, err := s.status.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read status"})
		return
	}

	var start any
	if snap.Run.RunStart != nil {
		start = snap.Run.RunStart.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, gin.H{
		"electric_shocks": snap.Run.Shocks,
		"cpr_cycles":      snap.Run.CprCycles,
		"breathe":         snap.Run.Ventilations,
		"start_time":      start,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	snap, err := s.status.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"state":        snap.State,
		"write_faults": snap.WriteFaults,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap, err := s.status.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read status"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handlePreview(c *gin.Context) {
	if s.preview == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview disabled"})
		return
	}
	data, ok, err := s.preview.PreviewJPEG(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode preview"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preview frame"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}
