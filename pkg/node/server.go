package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

/*
Server handles HTTP requests from vault clients.

Upload Flow:
  POST /upload/{name}:
    - Body is a SignedUpload: u32 sig_len | signature | envelope
    - Rejected with 400 if the framing or the envelope header is truncated
    - Stored under SHA-256(name), replacing any previous upload of that name
    - Tree is rebuilt and the inclusion proof for SHA-256(body) is returned (201)

Read Flow:
  GET /read/{name}:
    - Returns the encoded inclusion proof immediately followed by the stored
      SignedUpload bytes (200), or 404 for an unknown name
    - Proof and blob always come from the same tree snapshot

Verify Flow:
  GET /verify:
    - Returns the raw 32-byte top hash (200), or 404 while the store is empty

Operational:
  GET /healthz:
    - 200 when the persistence layer answers, 503 otherwise

Every response carries an X-Request-Id header. When a rate limit is configured,
requests over the limit are rejected with 429 before reaching a handler.
*/

const (
	// RequestIDHeader carries the per-request id
	RequestIDHeader = "X-Request-Id"

	readHeaderTimeout = 10 * time.Second
)

// Server handles HTTP requests for the node
type Server struct {
	node       *Node
	httpServer *http.Server
	limiter    *rate.Limiter
}

// NewServer creates a new server instance. A non-positive rateLimit disables rate limiting.
func NewServer(node *Node, port int, rateLimit float64, rateBurst int) *Server {
	s := &Server{
		node: node,
	}
	if rateLimit > 0 {
		if rateBurst <= 0 {
			rateBurst = DefaultRateBurst
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
	}

	mux := http.NewServeMux()

	// Client endpoints
	mux.HandleFunc("/upload/{name}", s.handleUpload)
	mux.HandleFunc("/read/{name}", s.handleRead)
	mux.HandleFunc("/verify", s.handleVerify)

	// Health endpoint
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.withRequestID(s.withRateLimit(mux)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.node.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.node.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down, waiting for in-flight requests
// until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.node.logger.Sugar().Warnw("Graceful shutdown failed, closing server", "error", err)
		return s.httpServer.Close()
	}
	return nil
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.node.logger.Sugar().Debugw("Handled request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.node.logger.Sugar().Warnw("Rate limit exceeded",
				"request_id", w.Header().Get(RequestIDHeader),
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
