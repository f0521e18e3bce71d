package ble

import (
  "strconv"
  "strings"

  "github.com/go-ble/ble/linux/hci/cmd"
)

// Flags tune the HCI scanner. BlueZ ignores them.
type Flags int

const (
  // Run active scans rather than passive scans. Scan responses usually carry the local name
  // and Tx Power Level of beacons.
  FlagScanTypeActive Flags = 1 << iota
  // Only report devices on the controller allow-list. Must be configured with
  // `SetAllowListedAddresses()`.
  FlagEnableDeviceAllowList
  // Let the controller drop repeated advertisements of a device. Known beacons then stop
  // getting RSSI updates until the scan restarts.
  FlagFilterDuplicates
)

var flagNames = []struct {
  flag Flags
  name string
}{
  {FlagScanTypeActive, "active scan"},
  {FlagEnableDeviceAllowList, "device allow-list"},
  {FlagFilterDuplicates, "duplicate filter"},
}

func (f Flags) has(o Flags) bool {
  return f & o == o
}

func (f Flags) String() string {
  var names []string

  for _, n := range flagNames {
    if f.has(n.flag) {
      names = append(names, n.name)
    }
  }

  if len(names) == 0 {
    return "none"
  }

  return strings.Join(names, ", ")
}

// allowDuplicates is the allowDup argument of go-ble's Device.Scan.
func (f Flags) allowDuplicates() bool {
  return !f.has(FlagFilterDuplicates)
}

func (f Flags) scanType() scanType {
  if f.has(FlagScanTypeActive) {
    return scanTypeActive
  }

  return scanTypePassive
}

func (f Flags) filterPolicy() filterPolicy {
  if f.has(FlagEnableDeviceAllowList) {
    return filterPolicyAllowListedOnly
  }

  return filterPolicyAcceptAll
}

// The scan window equals the interval, so the controller listens continuously.
func (f Flags) scanParameters() cmd.LESetScanParameters {
  return cmd.LESetScanParameters{
    LEScanType:           uint8(f.scanType()),
    LEScanInterval:       0x0010, // N * 0.625msec
    LEScanWindow:         0x0010, // == interval
    OwnAddressType:       0x00,   // public
    ScanningFilterPolicy: uint8(f.filterPolicy()),
  }
}

type scanType uint8

const (
  scanTypePassive scanType = iota
  scanTypeActive
)

func (s scanType) String() string {
  switch s {
  case scanTypeActive:
    return "Active"
  case scanTypePassive:
    return "Passive"
  default:
    panic("unknown scanType value: " + strconv.Itoa(int(s)))
  }
}

type filterPolicy uint8

const (
  filterPolicyAcceptAll filterPolicy = iota
  filterPolicyAllowListedOnly
)

func (f filterPolicy) String() string {
  switch f {
  case filterPolicyAcceptAll:
    return "Accept All"
  case filterPolicyAllowListedOnly:
    return "Allow-listed Only"
  default:
    panic("unknown filterPolicy value: " + strconv.Itoa(int(f)))
  }
}
