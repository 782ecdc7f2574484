package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// UserHeader carries the acting user's id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// maxUploadSize fits high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Server handles HTTP requests for the engine
type Server struct {
	engine    *Engine
	basicAuth BasicAuth
	router    chi.Router
	validate  *validator.Validate
}

// NewServer creates a new Server
func NewServer(engine *Engine, basicAuth BasicAuth) *Server {
	s := &Server{
		engine:    engine,
		basicAuth: basicAuth,
		router:    chi.NewRouter(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		if s.basicAuth.Username != "" || s.basicAuth.Password != "" {
			r.Use(middleware.BasicAuth("SiteLedger", map[string]string{
				s.basicAuth.Username: s.basicAuth.Password,
			}))
		}
		r.Use(requireUser)

		r.Route("/receipts", func(r chi.Router) {
			// Extraction calls can be slow
			r.With(middleware.Timeout(3*time.Minute)).Post("/scan", s.handleScanReceipt)
			r.Post("/annotate", s.handleAnnotateReceipt)
			r.Post("/", s.handleCreateReceipt)
			r.Get("/", s.handleListReceipts)
			r.Get("/{id}", s.handleGetReceipt)
			r.Delete("/{id}", s.handleDeleteReceipt)
			r.Get("/{id}/file", s.handleGetReceiptFile)
			r.Get("/{id}/duplicates", s.handleReceiptDuplicates)
			r.Post("/{id}/void", s.handleVoidReceipt)
		})

		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/summary", s.handleJobSummary)
			r.Get("/alerts", s.handleJobAlerts)
			r.Get("/shift-alerts", s.handleShiftAlerts)
		})

		r.Route("/timesheets", func(r chi.Router) {
			r.Post("/clock-in", s.handleClockIn)
			r.Post("/clock-out", s.handleClockOut)
			r.Get("/", s.handleListTimesheets)
			r.Get("/{id}", s.handleGetTimesheet)
			r.Post("/{id}/locations", s.handleRecordLocation)
			r.Post("/{id}/approve", s.handleApproveTimesheet)
			r.Post("/{id}/reject", s.handleRejectTimesheet)
		})
	})
}

// Start serves HTTP on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  time.Minute,
		WriteTimeout: 4 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	slog.Info("Starting server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type userKey struct{}

// requireUser rejects API calls without an acting user
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeJSONError(w, http.StatusUnauthorized, UserHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func actingUser(r *http.Request) string {
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request with slog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
