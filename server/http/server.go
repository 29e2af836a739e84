package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/w-h-a/medimate/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type httpServer struct {
	options server.Options
	srv     *http.Server
}

func (s *httpServer) Run() error {
	slog.Info("http server listening", "address", s.options.Address)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.options.ShutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

func NewServer(kit Kit, opts ...server.Option) server.Server {
	options := server.NewOptions(opts...)

	ms, _ := MiddlewareFrom(options.Context)

	handler := otelhttp.NewHandler(NewHandler(kit, options.MaxUploadBytes, ms...), "medimate")

	return &httpServer{
		options: options,
		srv: &http.Server{
			Addr:              options.Address,
			Handler:           handler,
			ReadHeaderTimeout: options.ReadHeaderTimeout,
			WriteTimeout:      options.WriteTimeout,
		},
	}
}
