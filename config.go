package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/robertof/go-beacon-exporter/ble"
	"github.com/robertof/go-beacon-exporter/session"
)

type config struct {
  Debug, Trace bool
  BindAddress string
  Backend ble.Backend
  BluetoothDeviceId int
  ActiveScan bool
  FilterDuplicates bool
  AllowList addressList
  MaxRetries int
  Backoff time.Duration
  PrintInterval time.Duration
  DiscoverDevices bool
  DiscoverDuration time.Duration
}

type addressList []net.HardwareAddr

func (l *addressList) String() string {
  if l == nil {
    return ""
  }

  addrs := make([]string, len(*l))

  for i, addr := range *l {
    addrs[i] = addr.String()
  }

  return strings.Join(addrs, ",")
}

func (l *addressList) Set(v string) error {
  for _, entry := range strings.Split(v, ",") {
    entry = strings.TrimSpace(entry)

    if entry == "" {
      continue
    }

    hwAddr, err := net.ParseMAC(entry)
    if err != nil {
      return fmt.Errorf("invalid addr: %w", err)
    }

    if len(hwAddr) != 6 {
      return fmt.Errorf("invalid addr %q: not a Bluetooth device address", entry)
    }

    *l = append(*l, hwAddr)
  }

  return nil
}

func (c config) bleFlags() (flags ble.Flags) {
  if c.ActiveScan {
    flags |= ble.FlagScanTypeActive
  }

  if len(c.AllowList) > 0 {
    flags |= ble.FlagEnableDeviceAllowList
  }

  if c.FilterDuplicates {
    flags |= ble.FlagFilterDuplicates
  }

  return flags
}

func (c config) sessionOptions() session.Options {
  return session.Options{
    MaxRetries: c.MaxRetries,
    BackoffFactor: c.Backoff,
  }
}

func parseArgs(fs *flag.FlagSet, args []string) (config, error) {
  var cfg config

  cfg.Backend = ble.BackendHCI

  fs.StringVar(&cfg.BindAddress, "bind", "localhost:9103", "Where the exporter will bind to")
  fs.Var(&cfg.Backend, "backend",
    "Bluetooth backend (one of 'hci' or 'bluez'). 'bluez' cannot read transmit power on Linux, " +
    "beacons then report the default of 1")
  fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  fs.BoolVar(&cfg.ActiveScan, "active", true,
    "Run active scans. Beacons usually send their name and transmit power in scan responses")
  fs.BoolVar(&cfg.FilterDuplicates, "filter-duplicates", false,
    "Let the controller drop repeated advertisements. Known beacons stop getting RSSI updates. HCI backend only")
  fs.Var(&cfg.AllowList, "allow",
    "Only scan the given device addresses (comma separated, repeatable). HCI backend only")
  fs.IntVar(&cfg.MaxRetries, "max-retries", session.DefaultMaxRetries,
    "Max number of consecutive failed scans before giving up")
  fs.DurationVar(&cfg.Backoff, "backoff", session.DefaultBackoffFactor,
    "Exponential backoff factor for scan retries")
  fs.DurationVar(&cfg.PrintInterval, "print-interval", 0,
    "Print the known beacons at this interval. Disabled when 0")
  fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover beacons, print them and quit")
  fs.DurationVar(&cfg.DiscoverDuration, "discover-duration", 5 * time.Second,
    "How long discovery scans for")
  fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  if err := fs.Parse(args); err != nil {
    return cfg, err
  }

  if cfg.MaxRetries < 0 {
    return cfg, fmt.Errorf("-max-retries must not be negative")
  }

  if cfg.DiscoverDevices && cfg.DiscoverDuration <= 0 {
    return cfg, fmt.Errorf("-discover-duration must be positive")
  }

  if len(cfg.AllowList) > 0 && cfg.Backend != ble.BackendHCI {
    return cfg, fmt.Errorf("-allow is only supported by the %q backend", ble.BackendHCI)
  }

  if cfg.FilterDuplicates && cfg.Backend != ble.BackendHCI {
    return cfg, fmt.Errorf("-filter-duplicates is only supported by the %q backend", ble.BackendHCI)
  }

  return cfg, nil
}

func ParseArgs() config {
  cfg, err := parseArgs(flag.CommandLine, os.Args[1:])

  if err != nil {
    fmt.Fprintln(os.Stderr, "Error:", err)
    flag.Usage()
    os.Exit(1)
  }

  return cfg
}
