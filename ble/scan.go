package ble

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/robertof/go-beacon-exporter/beacon"
	"github.com/rs/zerolog/log"
)

// ErrScanStopped is returned when a scan ends although its context is still live.
var ErrScanStopped = errors.New("scan stopped unexpectedly")

// Source produces observations until ctx is done or the scan fails.
type Source interface {
	// Scan blocks while scanning and calls onObservation for every advertisement received,
	// duplicates included unless FlagFilterDuplicates is set. It returns ctx.Err() (possibly
	// wrapped) on cancellation.
	Scan(ctx context.Context, onObservation func(beacon.Observation)) error
	Stop()
}

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
	return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and return every advertisement found. Repeated
// advertisements from the same device are included unless FlagFilterDuplicates is set.
func (h *Handle) ScanAll(ctx context.Context, onAdvertisement func(Advertisement)) error {
	err := h.dev.Scan(ctx, h.flags.allowDuplicates(), onAdvertisement)

	if err != nil {
		return fmt.Errorf("failed to initiate scan: %w", err)
	}

	return nil
}

func (h *Handle) Scan(ctx context.Context, onObservation func(beacon.Observation)) error {
	return h.ScanAll(ctx, func(a Advertisement) {
		o := ObservationFromAdvertisement(a)

		log.Trace().
			Stringer("Observation", o).
			Hex("ManufacturerData", a.ManufacturerData()).
			Bool("Connectable", a.Connectable()).
			Msg("ble: received advertisement")

		onObservation(o)
	})
}
