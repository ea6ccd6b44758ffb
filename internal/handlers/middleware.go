package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

const (
	HeaderRequestID = "X-Request-ID"
	// ContextKeyRequestID is where RequestID stores the id on the gin context.
	ContextKeyRequestID = "request_id"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs each completed request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "%s %s %d %s id=%s"
		args := []any{c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.GetString(ContextKeyRequestID)}
		if status >= http.StatusInternalServerError {
			logger.Errorf(line, args...)
			return
		}
		logger.Infof(line, args...)
	}
}

var corsAllowedHeaders = []string{
	"X-CSRF-Token",
	"X-Requested-With",
	"Accept",
	"Accept-Version",
	"Content-Length",
	"Content-MD5",
	"Content-Type",
	"Date",
	"X-Api-Version",
	HeaderRequestID,
}

// WithCORS applies the cross-origin policy to /api/ routes only.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodDelete, http.MethodPatch, http.MethodPost, http.MethodPut},
		AllowedHeaders:   corsAllowedHeaders,
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
	})
	api := c.Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			api.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the engine with middleware and routes, wrapped in CORS.
func NewRouter(h *HTTPHandler, allowedOrigins []string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())
	h.RegisterRoutes(r)
	return WithCORS(r, allowedOrigins)
}
