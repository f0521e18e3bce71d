package ble

import (
  "fmt"
  "slices"
)

type Backend string

const (
  // Raw HCI socket through go-ble. Needs CAP_NET_ADMIN and an adapter not claimed by BlueZ.
  BackendHCI   Backend = "hci"
  // BlueZ over D-Bus.
  BackendBlueZ Backend = "bluez"
)

var allBackends = []Backend{BackendHCI, BackendBlueZ}

// *flag.Value
func (b *Backend) String() string {
  return string(*b)
}

func (b *Backend) Set(v string) error {
  if v == "" {
    *b = BackendHCI
    return nil
  }

  p := Backend(v)

  if !slices.Contains(allBackends, p) {
    return fmt.Errorf("unknown backend %v (must be one of %v)", p, allBackends)
  }

  *b = p
  return nil
}

// Open initializes the scan source for the backend. deviceId and flags only apply to BackendHCI.
func Open(b Backend, deviceId int, flags Flags) (Source, error) {
  var src Source
  var err error

  switch b {
  case BackendHCI:
    src, err = Init(deviceId, flags)
  case BackendBlueZ:
    src, err = InitBlueZ()
  default:
    panic("unknown Bluetooth backend: " + b)
  }

  if err != nil {
    return nil, err
  }

  return src, nil
}
