// Package main runs a single RTP socket endpoint from the command line.
//
// rtpsocketd binds a UDP socket and a TCP listener on one local endpoint,
// admits a single peer host when --allow is given, logs what it receives and
// optionally serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/opd-ai/rtpsocket"
	"github.com/opd-ai/rtpsocket/internal/config"
	"github.com/opd-ai/rtpsocket/internal/logging"
	"github.com/opd-ai/rtpsocket/metrics"
	"github.com/opd-ai/rtpsocket/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := config.Default()
	var configPath string

	cmd := &cobra.Command{
		Use:           "rtpsocketd",
		Short:         "Run one RTP socket endpoint",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), configPath, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	bindFlags(fs, flags)
	return cmd
}

// bindFlags registers the command-line overrides for every config field.
func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Local host:port for the UDP socket and TCP listener")
	fs.StringVar(&cfg.AllowedHost, "allow", cfg.AllowedHost, "Only admit this peer IP (port ignored)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Endpoint name used in logs and metrics")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Rotated log file path (default: console)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this host:port")
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set explicitly on top of it.
func resolveConfig(fs *pflag.FlagSet, configPath string, flags *config.Config) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := map[string]func(){
		"listen":       func() { cfg.Listen = flags.Listen },
		"allow":        func() { cfg.AllowedHost = flags.AllowedHost },
		"name":         func() { cfg.Name = flags.Name },
		"log-level":    func() { cfg.LogLevel = flags.LogLevel },
		"log-format":   func() { cfg.LogFormat = flags.LogFormat },
		"log-file":     func() { cfg.LogFile = flags.LogFile },
		"metrics-addr": func() { cfg.MetricsAddr = flags.MetricsAddr },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run sets the endpoint up and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
		return err
	}

	listen, err := cfg.ListenAddr()
	if err != nil {
		return err
	}
	allowed, err := cfg.AllowedAddr()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts := rtpsocket.NewOptions()
	opts.Name = cfg.Name
	opts.AllowedRemoteHost = allowed
	opts.Observer = metrics.New(reg)

	manager := rtpsocket.NewWithOptions(opts)
	manager.SetDataReceivedHandler(logDelivery)

	if err := manager.Setup(listen); err != nil {
		return fmt.Errorf("set up %s: %w", cfg.Listen, err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Warn("Errors while closing sockets")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function":   "run",
		"name":       cfg.Name,
		"port":       manager.LocalPort(),
		"manager_id": manager.ID(),
	}).Info("RTP endpoint ready")

	var server *http.Server
	if cfg.MetricsAddr != "" {
		server, err = serveMetrics(cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}
	}

	<-ctx.Done()

	logrus.WithField("function", "run").Info("Shutting down")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Warn("Metrics server shutdown failed")
		}
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"error":    err.Error(),
			}).Error("Metrics server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "serveMetrics",
		"addr":     listener.Addr().String(),
	}).Info("Serving metrics")

	return server, nil
}

// logDelivery consumes everything it is given and logs the delivery.
func logDelivery(m *rtpsocket.Manager, s transport.Socket, data []byte, remote net.Addr) int {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		fields := logrus.Fields{
			"function": "logDelivery",
			"manager":  m.Name(),
			"socket":   s.Name(),
			"size":     len(data),
		}
		if remote != nil {
			fields["remote_addr"] = remote.String()
		}
		logrus.WithFields(fields).Debug("Received data")
	}
	return len(data)
}
