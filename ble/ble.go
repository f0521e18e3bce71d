package ble

import (
  "fmt"
  "net"

  "github.com/go-ble/ble"
  "github.com/go-ble/ble/linux"
  "github.com/go-ble/ble/linux/hci/cmd"
  "github.com/robertof/go-beacon-exporter/utils"
  "github.com/rs/zerolog/log"
)

type Advertisement = ble.Advertisement

// Handle is a scan source backed by a raw HCI socket.
type Handle struct {
  dev *linux.Device
  flags Flags
}

func Init(deviceId int, flags Flags) (*Handle, error) {
  log.Debug().
    Stringer("ScanType", flags.scanType()).
    Stringer("FilterPolicy", flags.filterPolicy()).
    Stringer("Flags", flags).
    Int("DeviceID", deviceId).
    Msg("Initializing Bluetooth device")

  dev, err := linux.NewDevice(
    ble.OptDeviceID(deviceId),
    ble.OptScanParams(flags.scanParameters()),
  )

  if err != nil {
    return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
  }

  return &Handle{
    dev: dev,
    flags: flags,
  }, nil
}

func (h *Handle) SetAllowListedAddresses(a []net.HardwareAddr) error {
  log.Debug().
    Array("DeviceAddresses", utils.ToZeroLogArray(a)).
    Msg("Allow-listing the requested Bluetooth devices")

  // clear the white list to make sure we're starting from an empty slate.
  var res cmd.LEClearWhiteListRP

  err := h.dev.HCI.Send(&cmd.LEClearWhiteList{}, &res)

  if err != nil {
    return fmt.Errorf("failed to clear allow-list: %w", err)
  }

  if res.Status != 0 {
    return fmt.Errorf("failed to clear allow-list: got status: %v", res.Status)
  }

  for _, addr := range a {
    if len(addr) != 6 {
      return fmt.Errorf("refusing to allow-list %q: not a 6 byte address", addr.String())
    }

    var res cmd.LEAddDeviceToWhiteListRP
    var wire [6]byte

    // HCI wants the address little-endian.
    copy(wire[:], utils.Reverse([]byte(addr)))

    err := h.dev.HCI.Send(&cmd.LEAddDeviceToWhiteList{
      AddressType: 0x00, // public
      Address:     wire,
    }, &res)

    if err != nil {
      return fmt.Errorf("failed to allow-list device %q: %w", addr.String(), err)
    }

    if res.Status != 0 {
      return fmt.Errorf("failed to allow-list device %q: got status: %v", addr.String(), res.Status)
    }
  }

  return nil
}

func (h *Handle) Stop() {
  if err := h.dev.Stop(); err != nil {
    log.Warn().Err(err).Msg("ble: failed to stop HCI device")
  }
}
