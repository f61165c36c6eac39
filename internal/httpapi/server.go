package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	srv  *http.Server
	errc chan error
}

// Start поднимает HTTP-сервер и останавливает его аккуратно при отмене ctx.
func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		errc: make(chan error, 1),
	}

	go func() {
		log.Info("http server started", zap.String("addr", addr))
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errc <- err
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}()

	return s
}

// Wait блокируется до остановки сервера; nil — штатная остановка.
func (s *Server) Wait() error { return <-s.errc }
