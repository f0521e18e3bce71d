package beacon

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTxPower is stored for a device whose first sighting carries no transmit power.
// It is a placeholder rather than a measured value, but it lets such devices promote.
const DefaultTxPower = 1

// Observation is a single advertisement sighting. Every field other than ID may be absent
// independently of the others.
type Observation struct {
	ID      string
	Name    string
	RSSI    int
	TxPower int

	HasName    bool
	HasRSSI    bool
	HasTxPower bool
}

// NewObservation returns an observation for id with every optional field absent.
func NewObservation(id string) Observation {
	return Observation{ID: id}
}

func (o Observation) WithName(name string) Observation {
	o.Name, o.HasName = name, true
	return o
}

func (o Observation) WithRSSI(rssi int) Observation {
	o.RSSI, o.HasRSSI = rssi, true
	return o
}

func (o Observation) WithTxPower(txPower int) Observation {
	o.TxPower, o.HasTxPower = txPower, true
	return o
}

func (o Observation) String() string {
	return fmt.Sprintf("Observation[ID=%v,%v]", o.ID, formatFields(
		o.Name, o.HasName, o.RSSI, o.HasRSSI, o.TxPower, o.HasTxPower))
}

// Record is the merged state of a device, pending or confirmed.
type Record struct {
	ID      string
	Name    string
	RSSI    int
	TxPower int

	HasName    bool
	HasRSSI    bool
	HasTxPower bool

	// Sightings counts the observations merged into this record.
	Sightings uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

func (r Record) String() string {
	return fmt.Sprintf("Record[ID=%v,Sightings=%d,%v]", r.ID, r.Sightings, formatFields(
		r.Name, r.HasName, r.RSSI, r.HasRSSI, r.TxPower, r.HasTxPower))
}

func (r *Record) merge(o Observation, now time.Time) {
	if o.HasName {
		r.Name, r.HasName = o.Name, true
	}

	if o.HasRSSI {
		r.RSSI, r.HasRSSI = o.RSSI, true
	}

	if o.HasTxPower {
		r.TxPower, r.HasTxPower = o.TxPower, true
	}

	r.Sightings++
	r.LastSeen = now
}

func (r *Record) complete() bool {
	return r.ID != "" && r.HasName && r.HasRSSI && r.HasTxPower
}

// Beacon returns the confirmed view of a complete record.
func (r Record) Beacon() Beacon {
	return Beacon{
		ID:        r.ID,
		Name:      r.Name,
		RSSI:      r.RSSI,
		TxPower:   r.TxPower,
		Sightings: r.Sightings,
		FirstSeen: r.FirstSeen,
		LastSeen:  r.LastSeen,
	}
}

// Beacon is a device for which name, signal strength and transmit power are all known.
type Beacon struct {
	ID      string
	Name    string
	RSSI    int
	TxPower int

	Sightings uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

func (b Beacon) String() string {
	return fmt.Sprintf("Beacon[ID=%v,Name=%q,RSSI=%d,TxPower=%d]", b.ID, b.Name, b.RSSI, b.TxPower)
}

func formatFields(name string, hasName bool, rssi int, hasRSSI bool, tx int, hasTx bool) string {
	var fields []string

	if hasName {
		fields = append(fields, fmt.Sprintf("Name=%q", name))
	}

	if hasRSSI {
		fields = append(fields, fmt.Sprintf("RSSI=%d", rssi))
	}

	if hasTx {
		fields = append(fields, fmt.Sprintf("TxPower=%d", tx))
	}

	return strings.Join(fields, ",")
}
