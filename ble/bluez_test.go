package ble

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/robertof/go-beacon-exporter/beacon"
	"tinygo.org/x/bluetooth"
)

type fakePayload struct {
	name string
	raw  []byte
}

func (p fakePayload) LocalName() string { return p.name }
func (p fakePayload) HasServiceUUID(bluetooth.UUID) bool { return false }
func (p fakePayload) Bytes() []byte { return p.raw }
func (p fakePayload) ManufacturerData() map[uint16][]byte { return nil }

func scanResult(t *testing.T, addr string, rssi int16, p bluetooth.AdvertisementPayload) bluetooth.ScanResult {
	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", addr, err)
	}

	return bluetooth.ScanResult{
		Address:              bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}},
		RSSI:                 rssi,
		AdvertisementPayload: p,
	}
}

func TestObservationFromScanResult_RawData(t *testing.T) {
	r := scanResult(t, "AA:BB:CC:DD:EE:FF", -67, fakePayload{
		name: "tag",
		raw:  []byte{0x02, 0x01, 0x06, 0x02, 0x0a, 0xc5},
	})

	got := observationFromScanResult(r)
	want := beacon.NewObservation("aa:bb:cc:dd:ee:ff").WithRSSI(-67).WithName("tag").WithTxPower(-59)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("observationFromScanResult(): got %+#v, wanted %+#v", got, want)
	}
}

// BlueZ on Linux: decoded properties only.
func TestObservationFromScanResult_NoRawData(t *testing.T) {
	r := scanResult(t, "11:22:33:44:55:66", -80, fakePayload{name: "room"})

	got := observationFromScanResult(r)
	want := beacon.NewObservation("11:22:33:44:55:66").WithRSSI(-80).WithName("room")

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("observationFromScanResult(): got %+#v, wanted %+#v", got, want)
	}

	m := beacon.NewMerger()
	if _, err := m.Ingest(got); err != nil {
		t.Fatalf("Ingest() got error: %v", err)
	}

	if b := m.Snapshot(); len(b) != 1 || b[0].TxPower != beacon.DefaultTxPower {
		t.Fatalf("Snapshot(): got %+v, wanted one beacon with the default tx power", b)
	}
}

func TestObservationFromScanResult_MissingAddressAndPayload(t *testing.T) {
	got := observationFromScanResult(bluetooth.ScanResult{RSSI: -90})
	want := beacon.NewObservation("").WithRSSI(-90)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("observationFromScanResult(): got %+#v, wanted %+#v", got, want)
	}
}

var errNotScanning = errors.New("not scanning")

// fakeAdapter rejects the first StopScan calls the way tinygo does before Scan has registered,
// and keeps Scan blocked until a StopScan succeeds.
type fakeAdapter struct {
	mu          sync.Mutex
	failedStops int
	stopCalls   int
	stop        chan struct{}
	returned    chan struct{}
	results     []bluetooth.ScanResult
}

func newFakeAdapter(failedStops int, results ...bluetooth.ScanResult) *fakeAdapter {
	return &fakeAdapter{
		failedStops: failedStops,
		stop:        make(chan struct{}),
		returned:    make(chan struct{}),
		results:     results,
	}
}

func (a *fakeAdapter) Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	defer close(a.returned)

	for _, r := range a.results {
		callback(nil, r)
	}

	<-a.stop
	return nil
}

func (a *fakeAdapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopCalls++

	if a.stopCalls <= a.failedStops {
		return errNotScanning
	}

	if a.stopCalls == a.failedStops+1 {
		close(a.stop)
	}

	return nil
}

func (a *fakeAdapter) stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopCalls
}

func TestBlueZScan_RetriesStopUntilScanReturns(t *testing.T) {
	adapter := newFakeAdapter(3)
	src := &BlueZ{adapter: adapter}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := src.Scan(ctx, func(beacon.Observation) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan(): got %v, wanted %v", err, context.Canceled)
	}

	select {
	case <-adapter.returned:
	default:
		t.Fatalf("Scan() returned while the adapter was still scanning")
	}

	if got := adapter.stops(); got < 4 {
		t.Fatalf("StopScan() called %d times, wanted at least 4", got)
	}
}

func TestBlueZScan_DeliversObservations(t *testing.T) {
	adapter := newFakeAdapter(0,
		scanResult(t, "AA:BB:CC:DD:EE:01", -40, fakePayload{name: "a"}),
		scanResult(t, "AA:BB:CC:DD:EE:02", -50, fakePayload{}),
	)
	src := &BlueZ{adapter: adapter}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got []string
	err := src.Scan(ctx, func(o beacon.Observation) {
		got = append(got, o.ID)
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Scan(): got %v, wanted %v", err, context.DeadlineExceeded)
	}

	want := []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Scan() observations: got %v, wanted %v", got, want)
	}
}
