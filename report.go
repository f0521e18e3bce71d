package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/robertof/go-beacon-exporter/beacon"
)

type signalBand struct {
	min   int
	label string
	color *color.Color
}

// RSSI typically ranges from -100 (weak) to -30 (strong).
var signalBands = []signalBand{
	{-50, "excellent", color.New(color.FgGreen, color.Bold)},
	{-60, "good", color.New(color.FgGreen)},
	{-70, "fair", color.New(color.FgYellow)},
	{-80, "weak", color.New(color.FgRed)},
}

var veryWeak = signalBand{label: "very weak", color: color.New(color.FgHiBlack)}

func signalStrength(rssi int) signalBand {
	for _, band := range signalBands {
		if rssi >= band.min {
			return band
		}
	}

	return veryWeak
}

func displayName(name string) string {
	if name == "" {
		return "[unnamed]"
	}

	return name
}

func printBeacons(w io.Writer, beacons []beacon.Beacon, stats beacon.Stats) {
	fmt.Fprintf(w, "%d beacons, %d pending devices\n", stats.Confirmed, stats.Pending)

	for _, b := range beacons {
		band := signalStrength(b.RSSI)

		fmt.Fprintf(w, "Name: %-20s ID: %s  RSSI: %4d dBm %s  TX Power: %d\n",
			displayName(b.Name), b.ID, b.RSSI, band.color.Sprintf("[%s]", band.label), b.TxPower)
	}
}

func runPrinter(ctx context.Context, w io.Writer, m *beacon.Merger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			printBeacons(w, m.Snapshot(), m.Stats())
		}
	}
}
