// Package agentd exposes a programmer Session's scan/read/write/rswp/
// pswp operations over mTLS HTTPS, a network front end for the
// orchestrator stack.
package agentd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/programmer"
)

// Server is the programmer-agent HTTPS daemon: it serializes every
// request through one Session, the same exclusive-use contract the
// Session type itself documents.
type Server struct {
	config     Config
	session    *programmer.Session
	sessionTag string
	history    *history.Store
	httpServer *http.Server
	logger     *log.Logger
}

// NewServer wires routes for the given session and starts listening
// once Start is called. history may be nil to disable audit logging.
// sessionTag identifies the underlying programmer/transport in audit
// events (e.g. the serial port or SMBus adapter name).
func NewServer(config Config, session *programmer.Session, sessionTag string, h *history.Store) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("agentd: invalid configuration: %w", err)
	}

	logger := log.New(os.Stdout, "[agentd] ", log.LstdFlags)
	if config.LogFile != "" {
		logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- operator-specified log path
		if err != nil {
			return nil, fmt.Errorf("agentd: open log file: %w", err)
		}
		logger = log.New(logFile, "[agentd] ", log.LstdFlags)
	}

	s := &Server{config: config, session: session, sessionTag: sessionTag, history: h, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withLogging(s.handleHealth))
	mux.HandleFunc("/scan", s.withLogging(s.handleScan))
	mux.HandleFunc("/read", s.withLogging(s.handleRead))
	mux.HandleFunc("/write", s.withLogging(s.handleWrite))
	mux.HandleFunc("/rswp", s.withLogging(s.handleRswp))
	mux.HandleFunc("/pswp", s.withLogging(s.handlePswp))

	tlsConfig, err := config.LoadTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("agentd: load TLS config: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		TLSConfig:    tlsConfig,
		ErrorLog:     logger,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Start blocks serving mTLS HTTPS until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Printf("starting agent daemon on port %d with mTLS", s.config.Port)
	if err := s.httpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("agentd: server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Println("shutting down agent daemon")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientCN := "none"
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			clientCN = r.TLS.PeerCertificates[0].Subject.CommonName
		}
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)
		s.logger.Printf("%s %s %d client=%s duration=%s",
			r.Method, r.URL.Path, wrapped.statusCode, clientCN, time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintln(w, "OK")
}
