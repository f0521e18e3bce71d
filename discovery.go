package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/robertof/go-beacon-exporter/beacon"
	"github.com/robertof/go-beacon-exporter/ble"
	"github.com/robertof/go-beacon-exporter/utils"
)

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("DurationSec", cfg.DiscoverDuration).
    Stringer("Backend", &cfg.Backend).
    Msg("Starting in device discovery mode - collecting beacons...")

  src, err := ble.Open(cfg.Backend, cfg.BluetoothDeviceId, cfg.bleFlags() | ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer src.Stop()

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      cfg.DiscoverDuration,
    ),
  )

  merger := beacon.NewMerger()

  err = src.Scan(ctx, func(o beacon.Observation) {
    if _, err := merger.Ingest(o); err != nil {
      log.Warn().Err(err).Stringer("Observation", o).Msg("Skipping invalid observation")
      return
    }

    log.Debug().
      Stringer("Observation", o).
      Msg("Received device advertisement")
  })

  if err != nil && !utils.IsContextDone(err) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  stats := merger.Stats()

  log.Info().
    Int("Beacons", stats.Confirmed).
    Int("Pending", stats.Pending).
    Msg("Finished device discovery")

  for _, b := range merger.Snapshot() {
    log.Info().
      Str("ID", b.ID).
      Str("Name", b.Name).
      Int("RSSI", b.RSSI).
      Int("TxPower", b.TxPower).
      Uint64("Sightings", b.Sightings).
      Msg("Found beacon")
  }

  for _, r := range merger.Pending() {
    ev := log.Info().Str("ID", r.ID).Uint64("Sightings", r.Sightings)

    if r.HasName {
      ev = ev.Str("Name", r.Name)
    }

    if r.HasRSSI {
      ev = ev.Int("RSSI", r.RSSI)
    }

    ev.Int("TxPower", r.TxPower).Msg("Found incomplete device")
  }

  printBeacons(os.Stdout, merger.Snapshot(), stats)
}
