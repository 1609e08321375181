package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"telegramformbot/pkg/state"
	"telegramformbot/pkg/storage"

	"github.com/gin-gonic/gin"
)

// Server exposes liveness and counters over HTTP for operators. It carries no
// bot functionality.
type Server struct {
	srv *http.Server
}

func New(addr string, responses storage.ResponseStore, sessions *state.Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		count, err := responses.Count(c.Request.Context())
		if err != nil {
			log.Printf("[stats] Failed to count responses: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count responses"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"responses": count,
			"sessions":  sessions.Len(),
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the underlying mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
