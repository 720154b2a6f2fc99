package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-manager/api"
	"task-manager/api/middleware"
	"task-manager/config"
	"task-manager/errors"
	"task-manager/events"
	"task-manager/logger"

	"github.com/gorilla/mux"
)

// Service is everything the server needs from the task manager.
type Service interface {
	api.TaskService
	api.StatsProvider
	events.Subscribable
	Close(ctx context.Context) error
}

// Server wraps http.Server with graceful shutdown capabilities
type Server struct {
	httpServer *http.Server
	service    Service
	closers    []io.Closer
	config     *config.Config
	logger     *logger.Logger

	// streams is cancelled on shutdown so long-lived event streams let go
	streams context.CancelFunc
}

// dependencies contains all the dependencies needed to create a server
type dependencies struct {
	service Service
	config  *config.Config
	logger  *logger.Logger
}

// New creates a new server with all HTTP configuration. The closers are
// closed, in order, after the service has drained on shutdown.
func New(svc Service, cfg *config.Config, lg *logger.Logger, closers ...io.Closer) *Server {
	deps := &dependencies{
		service: svc,
		config:  cfg,
		logger:  lg,
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	return &Server{
		httpServer: httpServer,
		service:    svc,
		closers:    closers,
		config:     cfg,
		logger:     lg,
		streams:    cancel,
	}
}

// newRouter creates and configures the HTTP router with all routes and middleware
func newRouter(deps *dependencies) http.Handler {
	router := mux.NewRouter()
	lg := deps.logger

	taskPath := "/tasks/{" + api.TaskIDVar + "}"
	router.HandleFunc("/tasks", api.NewListTasksHandler(deps.service, lg)).Methods(http.MethodGet)
	router.HandleFunc("/tasks", api.NewCreateTaskHandler(deps.service, lg)).Methods(http.MethodPost)
	router.HandleFunc(taskPath, api.NewGetTaskHandler(deps.service, lg)).Methods(http.MethodGet)
	router.HandleFunc(taskPath, api.NewUpdateTaskHandler(deps.service, lg)).Methods(http.MethodPatch, http.MethodPut)
	router.HandleFunc(taskPath, api.NewDeleteTaskHandler(deps.service, lg)).Methods(http.MethodDelete)
	router.HandleFunc("/events", api.NewEventsHandler(deps.service, lg)).Methods(http.MethodGet)
	router.HandleFunc("/health", api.NewHealthHandler(deps.config, deps.service, lg)).Methods(http.MethodGet)

	router.NotFoundHandler = jsonError(errors.NewNotFoundError("route not found"), lg)
	router.MethodNotAllowedHandler = jsonError(&errors.TaskError{
		Type:    errors.ValidationError,
		Message: "method not allowed",
		Code:    http.StatusMethodNotAllowed,
	}, lg)

	// Encapsulate middleware configuration
	return applyMiddleware(router, lg)
}

func jsonError(taskErr *errors.TaskError, lg *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(taskErr.Code)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: taskErr.Message, Type: string(taskErr.Type)})
		lg.Debug("unrouted request", map[string]any{
			"http_method": r.Method,
			"http_path":   r.URL.Path,
			"status_code": taskErr.Code,
		})
	})
}

// applyMiddleware wraps the handler with all necessary middleware
func applyMiddleware(handler http.Handler, lg *logger.Logger) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	wrapped := handler

	// Request logging middleware
	wrapped = middleware.LoggingMiddleware(lg)(wrapped)

	return wrapped
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	failed := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		s.logger.Info("Server starting", map[string]any{
			"address": s.config.Address(),
			"storage": s.config.StorageBackend,
		})

		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start", map[string]any{
				"error": err.Error(),
			})
			failed <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-stop:
		s.logger.Info("Shutting down server")
	case err := <-failed:
		s.Shutdown()
		return err
	}

	return s.Shutdown()
}

// Shutdown stops accepting requests, drains pending persistence and then
// releases the storage connections, all within the shutdown timeout.
func (s *Server) Shutdown() error {
	// Create a context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error

	s.streams()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", map[string]any{
			"error": err.Error(),
		})
		errs = append(errs, err)
	}

	if err := s.service.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("failed to release resource", map[string]any{
				"error": err.Error(),
			})
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
