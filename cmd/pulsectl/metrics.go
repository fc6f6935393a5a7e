package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blockberries/pulse/metrics"
)

// metricsServer serves the pipeline instruments on /metrics for the
// lifetime of one connection.
type metricsServer struct {
	srv *http.Server
	log *zap.Logger
}

func startMetrics(addr string, log *zap.Logger) (*metrics.Pipeline, *metricsServer, error) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPipeline(reg)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ms := &metricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
	go func() {
		if err := ms.srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Debug("metrics listening", zap.String("addr", lis.Addr().String()))
	return m, ms, nil
}

func (ms *metricsServer) Close() error {
	if ms == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ms.srv.Shutdown(ctx)
}
