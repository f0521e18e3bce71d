package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robertof/go-beacon-exporter/beacon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ExposesConfirmedBeacons(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	m := beacon.NewMerger(beacon.WithClock(func() time.Time { return clock }))

	for _, o := range []beacon.Observation{
		beacon.NewObservation("y").WithRSSI(-50),
		beacon.NewObservation("y").WithName("B").WithTxPower(-59),
		beacon.NewObservation("x").WithName("A").WithRSSI(-40),
		beacon.NewObservation("p").WithRSSI(-90),
	} {
		_, err := m.Ingest(o)
		require.NoError(t, err)
	}

	reg := prometheus.NewPedanticRegistry()
	RegisterCollector(FromMerger(m), reg)

	expected := `
# HELP beacon_confirmed_devices Devices promoted to beacons.
# TYPE beacon_confirmed_devices gauge
beacon_confirmed_devices 2
# HELP beacon_pending_devices Devices sighted whose name, signal strength or transmit power is still unknown.
# TYPE beacon_pending_devices gauge
beacon_pending_devices 1
# HELP beacon_rssi_dbm Last received signal strength of the beacon in dBm.
# TYPE beacon_rssi_dbm gauge
beacon_rssi_dbm{id="x",name="A"} -40
beacon_rssi_dbm{id="y",name="B"} -50
# HELP beacon_sightings_total Advertisements merged into the beacon record.
# TYPE beacon_sightings_total counter
beacon_sightings_total{id="x",name="A"} 1
beacon_sightings_total{id="y",name="B"} 2
# HELP beacon_tx_power_dbm Transmit power advertised by the beacon in dBm. 1 means no transmit power was advertised.
# TYPE beacon_tx_power_dbm gauge
beacon_tx_power_dbm{id="x",name="A"} 1
beacon_tx_power_dbm{id="y",name="B"} -59
`

	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"beacon_confirmed_devices",
		"beacon_pending_devices",
		"beacon_rssi_dbm",
		"beacon_sightings_total",
		"beacon_tx_power_dbm",
	)
	assert.NoError(t, err)

	// 2 confirmed beacons * 4 series + 2 gauges
	assert.Equal(t, 10, testutil.CollectAndCount(&collector{FromMerger(m)}))
}

func TestCollector_Empty(t *testing.T) {
	c := &collector{FromMerger(beacon.NewMerger())}

	assert.Equal(t, 2, testutil.CollectAndCount(c))
	assert.Equal(t, 0, testutil.CollectAndCount(c, "beacon_rssi_dbm"))
}
