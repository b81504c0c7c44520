package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatusAPIService serves the engine state over HTTP to the local renderer.
type StatusAPIService struct {
	Addr            string
	Handler         http.Handler
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewStatusAPIService initializes a new StatusAPIService.
func NewStatusAPIService(addr string, handler http.Handler, logger zerolog.Logger) *StatusAPIService {
	return &StatusAPIService{
		Addr:            addr,
		Handler:         handler,
		ShutdownTimeout: 5 * time.Second,
		Logger:          logger,
	}
}

// Start binds the listen address and serves in the background.
func (s *StatusAPIService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		s.Logger.Warn().Msg("StatusAPIService is already running")
		return errors.New("status api service is already running")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error().Err(err).Str("addr", s.Addr).Msg("Failed to bind status API")
		return err
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func(server *http.Server) {
		defer s.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("Status API stopped unexpectedly")
		}
	}(s.server)

	s.Logger.Info().Str("addr", listener.Addr().String()).Msg("StatusAPIService started successfully")
	return nil
}

// Stop shuts the server down, waiting up to ShutdownTimeout for open requests.
func (s *StatusAPIService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		s.Logger.Warn().Msg("StatusAPIService is not running")
		return errors.New("status api service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		s.server.Close()
	}
	s.wg.Wait()

	s.server = nil
	s.listener = nil

	s.Logger.Info().Msg("StatusAPIService stopped successfully")
	return err
}

// ListenAddr returns the bound address, or "" when stopped.
func (s *StatusAPIService) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
