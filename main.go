package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-beacon-exporter/beacon"
	"github.com/robertof/go-beacon-exporter/ble"
	"github.com/robertof/go-beacon-exporter/metrics"
	"github.com/robertof/go-beacon-exporter/session"
	"github.com/robertof/go-beacon-exporter/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("BindAddr", cfg.BindAddress).
    Stringer("Backend", &cfg.Backend).
    Array("AllowList", utils.ToZeroLogArray([]net.HardwareAddr(cfg.AllowList))).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Msg("Starting with the specified configuration")

  src := initSource(cfg)
  merger := beacon.NewMerger()

  registry := prometheus.NewRegistry()
  session.RegisterMetrics(registry)
  metrics.RegisterCollector(metrics.FromMerger(merger), registry)

  mux := http.NewServeMux()
  mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

  server := &http.Server{
    Addr: cfg.BindAddress,
    Handler: mux,
  }

  ctx, cancel := context.WithCancel(context.Background())
  ctx = ble.WrapContextWithSigHandler(ctx, cancel)

  eg, ctx := errgroup.WithContext(ctx)

  eg.Go(func() error {
    defer cancel()
    return session.New(src, merger).Run(ctx, cfg.sessionOptions())
  })

  eg.Go(func() error {
    log.Info().
        Str("ListenAddress", cfg.BindAddress).
        Msg("Starting Prometheus server")

    if err := server.ListenAndServe(); err != http.ErrServerClosed {
      return err
    }

    return nil
  })

  eg.Go(func() error {
    <-ctx.Done()

    shutdownCtx, done := context.WithTimeout(context.Background(), 5 * time.Second)
    defer done()

    return server.Shutdown(shutdownCtx)
  })

  if cfg.PrintInterval > 0 {
    eg.Go(func() error {
      return runPrinter(ctx, os.Stdout, merger, cfg.PrintInterval)
    })
  }

  if err := eg.Wait(); err != nil {
    log.Fatal().Err(err).Msg("Beacon exporter failed")
  }

  log.Info().Msg("Bye")
}

func initSource(cfg config) ble.Source {
  src, err := ble.Open(cfg.Backend, cfg.BluetoothDeviceId, cfg.bleFlags())

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  if h, ok := src.(*ble.Handle); ok && len(cfg.AllowList) > 0 {
    if err := h.SetAllowListedAddresses(cfg.AllowList); err != nil {
      log.Error().Err(err).Msg("Failed to set device allow list")
    }
  }

  return src
}
