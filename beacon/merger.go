package beacon

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrEmptyIdentity      = errors.Wrap(ErrInvalidObservation, "empty device identity")
)

// Outcome describes what Ingest did with an observation.
type Outcome uint8

const (
	OutcomeRejected Outcome = iota
	// A new identity was recorded as pending.
	OutcomeCreated
	// A pending record was merged and is still pending.
	OutcomeUpdated
	// The record became complete and moved to the confirmed set.
	OutcomePromoted
	// A confirmed beacon was merged.
	OutcomeBeaconUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomePromoted:
		return "promoted"
	case OutcomeBeaconUpdated:
		return "beacon_updated"
	default:
		panic("unknown Outcome value: " + strconv.Itoa(int(o)))
	}
}

// State is the lifecycle position of an identity.
type State uint8

const (
	StateUnknown State = iota
	StatePending
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	default:
		panic("unknown State value: " + strconv.Itoa(int(s)))
	}
}

type Stats struct {
	Pending   int
	Confirmed int
}

// Merger consolidates partial observations into beacons. An identity lives in exactly one
// of the pending or confirmed sets once seen, and confirmed records are never demoted.
//
// Merger is safe for concurrent use: both sets are guarded by a single lock so that a
// promotion is atomic with respect to readers.
type Merger struct {
	mu sync.RWMutex

	pending   map[string]*Record
	confirmed map[string]*Record

	now func() time.Time
}

type Option func(*Merger)

// WithClock overrides the clock used for FirstSeen and LastSeen.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		m.now = now
	}
}

func NewMerger(opts ...Option) *Merger {
	m := &Merger{
		pending:   make(map[string]*Record),
		confirmed: make(map[string]*Record),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Ingest merges o into the record for its identity, promoting it once name, signal strength
// and transmit power are all known. Observations without an identity are rejected with
// ErrEmptyIdentity and leave the state untouched.
func (m *Merger) Ingest(o Observation) (Outcome, error) {
	if o.ID == "" {
		return OutcomeRejected, ErrEmptyIdentity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if r, ok := m.confirmed[o.ID]; ok {
		r.merge(o, now)
		return OutcomeBeaconUpdated, nil
	}

	if r, ok := m.pending[o.ID]; ok {
		r.merge(o, now)

		if !r.complete() {
			return OutcomeUpdated, nil
		}

		delete(m.pending, o.ID)
		m.confirmed[o.ID] = r

		log.Debug().Stringer("Beacon", r.Beacon()).Msg("beacon: promoted pending device")

		return OutcomePromoted, nil
	}

	r := &Record{
		ID:         o.ID,
		Name:       o.Name,
		RSSI:       o.RSSI,
		TxPower:    o.TxPower,
		HasName:    o.HasName,
		HasRSSI:    o.HasRSSI,
		HasTxPower: o.HasTxPower,
		Sightings:  1,
		FirstSeen:  now,
		LastSeen:   now,
	}

	if !r.HasTxPower {
		r.TxPower, r.HasTxPower = DefaultTxPower, true
	}

	if r.complete() {
		m.confirmed[o.ID] = r

		log.Debug().Stringer("Beacon", r.Beacon()).Msg("beacon: new device confirmed on first sighting")

		return OutcomePromoted, nil
	}

	m.pending[o.ID] = r

	log.Trace().Stringer("Record", r).Msg("beacon: new pending device")

	return OutcomeCreated, nil
}

// Snapshot returns a copy of every confirmed beacon, ordered by identity.
func (m *Merger) Snapshot() []Beacon {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked()
}

// SnapshotWithStats returns Snapshot and Stats read under the same lock, so the confirmed count
// always matches the number of beacons.
func (m *Merger) SnapshotWithStats() ([]Beacon, Stats) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked(), m.statsLocked()
}

func (m *Merger) snapshotLocked() []Beacon {
	ids := maps.Keys(m.confirmed)
	slices.Sort(ids)

	out := make([]Beacon, len(ids))

	for i, id := range ids {
		out[i] = m.confirmed[id].Beacon()
	}

	return out
}

// Pending returns a copy of every record still missing at least one field, ordered by identity.
func (m *Merger) Pending() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := maps.Keys(m.pending)
	slices.Sort(ids)

	out := make([]Record, len(ids))

	for i, id := range ids {
		out[i] = *m.pending[id]
	}

	return out
}

func (m *Merger) Lookup(id string) (Record, State) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.confirmed[id]; ok {
		return *r, StateConfirmed
	}

	if r, ok := m.pending[id]; ok {
		return *r, StatePending
	}

	return Record{}, StateUnknown
}

func (m *Merger) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.statsLocked()
}

func (m *Merger) statsLocked() Stats {
	return Stats{
		Pending:   len(m.pending),
		Confirmed: len(m.confirmed),
	}
}
