// Command coordinatord runs the RV device network coordinator: a UDP
// discovery responder, a TCP session server, and a liveness monitor,
// all under one process.
//
// Usage:
//
//	coordinatord [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-udp-port int         UDP discovery port (default 5000)
//	-tcp-port int         TCP session port (default 5001)
//	-diagnostic-log string  Append a CBOR diagnostic trace to this file
//	-advertise            Register an mDNS service for operator tooling
//	-log-level string     slog level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rvfleet/coordinator/pkg/config"
	"github.com/rvfleet/coordinator/pkg/coordinator"
	"github.com/rvfleet/coordinator/pkg/events"
	slogext "github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/registry"
	"github.com/rvfleet/coordinator/pkg/transport"
)

var (
	configFile    string
	udpPort       int
	tcpPort       int
	diagnosticLog string
	advertise     bool
	logLevel      string
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	flag.IntVar(&udpPort, "udp-port", 0, "UDP discovery port (overrides config)")
	flag.IntVar(&tcpPort, "tcp-port", 0, "TCP session port (overrides config)")
	flag.StringVar(&diagnosticLog, "diagnostic-log", "", "Append a CBOR diagnostic trace to this file")
	flag.BoolVar(&advertise, "advertise", false, "Register an mDNS service for operator tooling")
	flag.StringVar(&logLevel, "log-level", "info", "slog level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinatord: %v\n", err)
		os.Exit(1)
	}
	if udpPort != 0 {
		cfg.UDPPort = udpPort
	}
	if tcpPort != 0 {
		cfg.TCPPort = tcpPort
	}
	if diagnosticLog != "" {
		cfg.DiagnosticLogPath = diagnosticLog
	}
	if advertise {
		cfg.Advertise = true
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
	logger := slogext.NewSlogAdapter(slogger)

	transport.OnProbeFallback(func(err error) {
		slogger.Warn("tcp keep-alive probe interval unsupported on this platform, using idle-only keep-alive", "error", err)
	})

	coord := coordinator.New(coordinator.Config{
		UDPPort:               cfg.UDPPort,
		TCPPort:               cfg.TCPPort,
		HeartbeatTimeout:      time.Duration(cfg.HeartbeatTimeout),
		HeartbeatScanInterval: time.Duration(cfg.HeartbeatScanInterval),
		KeepAlive: transport.KeepAliveConfig{
			Idle:     time.Duration(cfg.TCPKeepAliveIdle),
			Interval: time.Duration(cfg.TCPKeepAliveInterval),
		},
		Logger:            logger,
		DiagnosticLogPath: cfg.DiagnosticLogPath,
		Clock:             registry.SystemClock,
		Advertise:         cfg.Advertise,
		InstanceName:      cfg.InstanceName,
	})

	unsubscribe := coord.Subscribe(logDisconnects(slogger))
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		slogger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}
	slogger.Info("coordinator started", "udp_port", cfg.UDPPort, "tcp_port", cfg.TCPPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slogger.Info("received signal, shutting down", "signal", sig.String())

	if err := coord.Stop(); err != nil {
		slogger.Error("error stopping coordinator", "error", err)
	}
}

func logDisconnects(logger *slog.Logger) events.Handler {
	return func(e events.Event) {
		if e.Kind == events.DeviceDisconnected {
			logger.Info("device disconnected", "target_id", e.TargetID)
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
