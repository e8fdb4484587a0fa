package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-engine/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-engine/internal/config"
	"github.com/oshokin/alarm-engine/internal/logger"
	"github.com/oshokin/alarm-engine/internal/service/engine"
	"github.com/oshokin/alarm-engine/internal/service/guard"
)

// Options controls the engine process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
}

const (
	// disconnectQuiesceMillis is how long the MQTT client may finish in-flight work.
	disconnectQuiesceMillis = 250
	// metricsShutdownTimeout bounds the metrics server shutdown.
	metricsShutdownTimeout = 5 * time.Second
	// metricsReadHeaderTimeout bounds slow metric scrapes.
	metricsReadHeaderTimeout = 5 * time.Second
)

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the engine and its gRPC server, and blocks until ctx is canceled or serving fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-engine")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	configureLogger(cfg)

	if cfg.Engine.SingleInstance {
		if err = guard.EnsureSingleInstance(""); err != nil {
			return err
		}
	}

	listenAddress, err := resolveListenAddress(cfg.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	res, err := buildResources(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}

	defer res.close()

	e, err := engine.New(res.deps, engine.SettingsFromConfig(&cfg.Engine))
	if err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}

	defer e.Close()

	res.metrics.RegisterGauge("alarm_engine_alarms", "Number of alarms in the working set", func() float64 {
		return float64(len(e.GetAll()))
	})

	preload(ctx, e, cfg.Engine.PreloadOwners)
	e.Start(ctx)

	stopMetrics := serveMetrics(ctx, cfg.MetricsAddress, res.metrics.Handler())
	defer stopMetrics()

	// Closing the engine ends signal streams, which GracefulStop would wait for.
	return serve(ctx, listenAddress, newGRPCServer(cfg, e), e.Close)
}

func configureLogger(cfg *config.Config) {
	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return
	}

	logger.SetLogger(logger.New(level, cfg.LogFormat))
}

// newGRPCServer registers the alarm service, with bearer authentication when a secret is set.
func newGRPCServer(cfg *config.Config, e *engine.Engine) *grpc.Server {
	var options []grpc.ServerOption

	if cfg.Auth.JWTSecret != "" {
		auth := api.NewAuthenticator(cfg.Auth.JWTSecret)
		options = append(options,
			grpc.ChainUnaryInterceptor(auth.Unary()),
			grpc.ChainStreamInterceptor(auth.Stream()),
		)
	}

	grpcServer := grpc.NewServer(options...)
	api.Register(grpcServer, api.NewServer(e))

	return grpcServer
}

// serve blocks on the gRPC server and stops it gracefully when ctx is done.
// beforeStop runs ahead of the graceful stop.
func serve(ctx context.Context, listenAddress string, grpcServer *grpc.Server, beforeStop func()) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Alarm engine listening", "listen_address", listenAddress)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		beforeStop()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// serveMetrics exposes the Prometheus handler on address. It returns the shutdown function.
func serveMetrics(ctx context.Context, address string, handler http.Handler) func() {
	if address == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	metricsServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		logger.InfoKV(ctx, "Serving metrics", "metrics_address", address)

		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
