// Command netcored runs a single peer of the stream-multiplexing frame
// protocol: it listens on both the stream and datagram transport variants,
// routes inbound frames by tag, and answers every Handshake it receives
// with its own, so two instances pointed at each other complete a minimal
// handshake exchange.
//
// Usage:
//
//	netcored [options]
//
// Options:
//
//	-config  Path to a YAML config file (default: none, built-in defaults)
//	-port    UDP/TCP port (default: 14625)
//	-metrics Prometheus exposition address (default: ":9465"; an empty
//	         value keeps the config file's metrics_addr, and an empty
//	         metrics_addr in the config file disables the endpoint)
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/domeland/network/pkg/router"
	"github.com/domeland/network/pkg/transport"
	"github.com/domeland/network/pkg/wire"
	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var protocolMagic = [7]byte{'n', 'e', 't', 'c', 'o', 'r', 'e'}
var protocolVersion = [3]uint32{0, 1, 0}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.Int("port", 0, "UDP/TCP port (overrides config)")
	metricsAddr := flag.String("metrics", "", "Prometheus exposition address (overrides config)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = parseLogLevel(cfg.LogLevel)
	logger := loggerFactory.NewLogger("netcored")

	reg := prometheus.NewRegistry()
	metrics := transport.NewMetrics(reg)

	self := uuid.New()
	logger.Infof("participant id %s", self)

	var r *router.Router

	manager, err := transport.NewManager(transport.ManagerConfig{
		Port:            cfg.Port,
		StreamEnabled:   !cfg.DisableStream,
		DatagramEnabled: !cfg.DisableDatagram,
		FrameHandler:    func(msg *transport.Inbound) { r.Dispatch(msg) },
		Metrics:         metrics,
		LoggerFactory:   loggerFactory,
	})
	if err != nil {
		log.Fatalf("creating transport manager: %v", err)
	}
	r = router.New(manager)

	r.Handle(wire.TagHandshake, func(peer transport.PeerAddress, f wire.Frame) {
		logger.Infof("handshake from %s", peer)
		if err := r.SendInternal(peer, wire.Handshake{Magic: protocolMagic, Version: protocolVersion}); err != nil {
			logger.Warnf("replying to handshake from %s: %v", peer, err)
			return
		}
		if err := r.SendInternal(peer, wire.ParticipantIDFromUUID(self)); err != nil {
			logger.Warnf("announcing participant id to %s: %v", peer, err)
		}
	})
	r.Handle(wire.TagRaw, func(peer transport.PeerAddress, f wire.Frame) {
		raw := f.(wire.Raw)
		logger.Warnf("raw/undecodable frame from %s (%d bytes), connection likely desynchronized", peer, len(raw.Payload))
	})
	r.HandleDefault(func(peer transport.PeerAddress, f wire.Frame) {
		logger.Debugf("frame %s from %s", f.Tag(), peer)
	})

	if err := manager.Start(); err != nil {
		log.Fatalf("starting transport manager: %v", err)
	}
	defer manager.Stop()

	for _, addr := range manager.LocalAddresses() {
		logger.Infof("listening on %s", addr)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Infof("metrics listening on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if metricsServer != nil {
		metricsServer.Shutdown(context.Background())
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
