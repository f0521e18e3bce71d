package ble

import (
	"context"
	"fmt"
	"time"

	"github.com/robertof/go-beacon-exporter/beacon"
	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

// Interval between StopScan attempts while a cancelled scan has not returned yet.
const stopRetryInterval = 10 * time.Millisecond

// scanAdapter is the subset of *bluetooth.Adapter used for scanning.
type scanAdapter interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// BlueZ is a scan source going through the BlueZ D-Bus API rather than a raw HCI socket.
//
// On Linux BlueZ only hands out decoded device properties, never the raw advertising data, so
// beacons seen through it never report a transmit power and keep beacon.DefaultTxPower.
type BlueZ struct {
	adapter scanAdapter
}

func InitBlueZ() (*BlueZ, error) {
	adapter := bluetooth.DefaultAdapter

	log.Debug().Msg("Enabling BlueZ default adapter")

	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	return &BlueZ{adapter: adapter}, nil
}

func observationFromScanResult(r bluetooth.ScanResult) beacon.Observation {
	var addr string

	if r.Address != nil {
		addr = r.Address.String()
	}

	o := beacon.NewObservation(identity(addr)).WithRSSI(int(r.RSSI))

	if r.AdvertisementPayload == nil {
		return o
	}

	if name := r.LocalName(); name != "" {
		o = o.WithName(name)
	}

	// nil on Linux.
	if tx, ok := ParseTxPower(r.Bytes()); ok {
		o = o.WithTxPower(tx)
	}

	return o
}

func (b *BlueZ) Scan(ctx context.Context, onObservation func(beacon.Observation)) error {
	done := make(chan error, 1)

	go func() {
		done <- b.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			select {
			case <-ctx.Done():
				return
			default:
			}

			onObservation(observationFromScanResult(r))
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to initiate scan: %w", err)
		}

		return ErrScanStopped
	case <-ctx.Done():
	}

	// StopScan fails until the adapter has registered the scan, so keep trying until the
	// scanning goroutine is gone.
	for {
		if err := b.adapter.StopScan(); err != nil {
			log.Trace().Err(err).Msg("ble: BlueZ scan not stoppable yet")
		}

		select {
		case <-done:
			return ctx.Err()
		case <-time.After(stopRetryInterval):
		}
	}
}

func (b *BlueZ) Stop() {
	// the default adapter is shared with BlueZ and stays powered.
	if err := b.adapter.StopScan(); err != nil {
		log.Trace().Err(err).Msg("ble: StopScan on idle adapter")
	}
}
