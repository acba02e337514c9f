// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/internal/metrics"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve decoded VESC telemetry as Prometheus metrics",
	Long: `Decode every status frame on the bus and serve the latest values per node
as Prometheus gauges (e.g. vesc_voltage_in_volts{node="31"}), together with
frame, decode error and anomaly counters.

The listen address and path come from --listen/--path or the metrics.addr
and metrics.path configuration keys.`,
	RunE: runExporter,
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().String("listen", ":9101", "Metrics listen address")
	exporterCmd.Flags().String("path", "/metrics", "Metrics HTTP path")
	bindFlag(exporterCmd, "metrics.addr", "listen")
	bindFlag(exporterCmd, "metrics.path", "path")
}

// observeLoop feeds every received frame into m until the bus is closed.
func observeLoop(bus canbus.Bus, m *metrics.Metrics) error {
	for {
		f, err := bus.Receive()
		if err != nil {
			if errors.Is(err, canbus.ErrClosed) {
				return err
			}
			m.Observe(f, nil, err, nil)
			logger.Debug("receive failed", zap.Error(err))
			continue
		}

		rec, decodeErr := vesc.DecodeFrame(f)
		if decodeErr != nil {
			m.Observe(f, nil, decodeErr, nil)
			logger.Debug("decode failed", zap.Stringer("frame", f), zap.Error(decodeErr))
			continue
		}

		var anomalies []vesc.ValidationError
		if rec != nil {
			anomalies = vesc.ValidateRecord(rec)
		}
		m.Observe(f, rec, nil, anomalies)
	}
}

func runExporter(cmd *cobra.Command, args []string) error {
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics path %q must start with /", cfg.Metrics.Path)
	}

	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signalContext()
	defer stop()
	closeOnDone(ctx, bus)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("exporter started",
		zap.String("bus", connInfo),
		zap.String("addr", cfg.Metrics.Addr),
		zap.String("path", cfg.Metrics.Path))

	loopErr := make(chan error, 1)
	go func() { loopErr <- observeLoop(bus, m) }()

	var runErr error
	select {
	case err := <-loopErr:
		if ctx.Err() == nil {
			runErr = fmt.Errorf("bus lost: %w", err)
		}
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("metrics server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	logger.Info("exporter stopped")
	return runErr
}
