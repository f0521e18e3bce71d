package metrics

import (
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-beacon-exporter/beacon"
)

var beaconLabels = []string{"id", "name"}

var (
  descRSSI = prometheus.NewDesc(
    "beacon_rssi_dbm",
    "Last received signal strength of the beacon in dBm.",
    beaconLabels,
    nil,
  )

  descTxPower = prometheus.NewDesc(
    "beacon_tx_power_dbm",
    "Transmit power advertised by the beacon in dBm. 1 means no transmit power was advertised.",
    beaconLabels,
    nil,
  )

  descSightings = prometheus.NewDesc(
    "beacon_sightings_total",
    "Advertisements merged into the beacon record.",
    beaconLabels,
    nil,
  )

  descLastSeen = prometheus.NewDesc(
    "beacon_last_seen_timestamp_seconds",
    "Time the beacon was last sighted.",
    beaconLabels,
    nil,
  )

  descPending = prometheus.NewDesc(
    "beacon_pending_devices",
    "Devices sighted whose name, signal strength or transmit power is still unknown.",
    nil,
    nil,
  )

  descConfirmed = prometheus.NewDesc(
    "beacon_confirmed_devices",
    "Devices promoted to beacons.",
    nil,
    nil,
  )
)

type SnapshotFunc func() ([]beacon.Beacon, beacon.Stats)

// FromMerger reads the snapshot of m on every scrape.
func FromMerger(m *beacon.Merger) SnapshotFunc {
  return m.SnapshotWithStats
}

type collector struct {
  SnapshotFunc
}

// Beacon series only exist once beacons do, so DescribeByCollect would miss them on an
// empty merger.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  for _, d := range []*prometheus.Desc{
    descRSSI, descTxPower, descSightings, descLastSeen, descPending, descConfirmed,
  } {
    ch <- d
  }
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  beacons, stats := c.SnapshotFunc()

  for _, b := range beacons {
    ch <- prometheus.MustNewConstMetric(
      descRSSI,
      prometheus.GaugeValue,
      float64(b.RSSI),
      b.ID,
      b.Name,
    )

    ch <- prometheus.MustNewConstMetric(
      descTxPower,
      prometheus.GaugeValue,
      float64(b.TxPower),
      b.ID,
      b.Name,
    )

    ch <- prometheus.MustNewConstMetric(
      descSightings,
      prometheus.CounterValue,
      float64(b.Sightings),
      b.ID,
      b.Name,
    )

    if !b.LastSeen.IsZero() {
      ch <- prometheus.MustNewConstMetric(
        descLastSeen,
        prometheus.GaugeValue,
        float64(b.LastSeen.UnixNano()) / 1e9,
        b.ID,
        b.Name,
      )
    }
  }

  ch <- prometheus.MustNewConstMetric(descPending, prometheus.GaugeValue, float64(stats.Pending))
  ch <- prometheus.MustNewConstMetric(descConfirmed, prometheus.GaugeValue, float64(stats.Confirmed))
}

func RegisterCollector(f SnapshotFunc, reg prometheus.Registerer) {
  c := &collector{f}

  reg.MustRegister(c)
}
