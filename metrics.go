package main

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vipnode/locomux/session"
)

// serveMetrics registers session metrics and serves them on addr at
// /metrics. The returned function stops the server.
func serveMetrics(addr string) (*session.Metrics, func() error, error) {
	reg := prometheus.NewRegistry()
	metrics, err := session.NewMetrics(reg, "locomux")
	if err != nil {
		return nil, nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != http.ErrServerClosed {
			logger.Warningf("Metrics server stopped: %s", err)
		}
	}()
	logger.Infof("Serving metrics on: http://%s/metrics", l.Addr())
	return metrics, srv.Close, nil
}
