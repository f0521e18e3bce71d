package session

import (
  "context"
  "fmt"
  "sync/atomic"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-beacon-exporter/beacon"
  "github.com/robertof/go-beacon-exporter/ble"
  "github.com/robertof/go-beacon-exporter/utils"
  "github.com/rs/zerolog/log"
)

const (
  DefaultMaxRetries = 5
  DefaultBackoffFactor = 500 * time.Millisecond
)

var (
  observationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
    Name: "beacon_exporter_observations_total",
    Help: "Observations merged, by outcome.",
  }, []string{"outcome"})
  invalidObservationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "beacon_exporter_invalid_observations_total",
    Help: "Observations rejected by the merger.",
  })
  scanFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "beacon_exporter_scan_failures_total",
    Help: "Scans that ended with an error.",
  })
)

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    observationsCounter,
    invalidObservationsCounter,
    scanFailuresCounter,
  )
}

type Options struct {
  // Consecutive failed scans tolerated before Run gives up. A scan that delivered at least
  // one observation resets the count.
  MaxRetries int
  BackoffFactor time.Duration
}

// Session owns the lifecycle of a scan and feeds its observations to a merger.
type Session struct {
  src ble.Source
  merger *beacon.Merger

  // observations received during the current scan attempt.
  received atomic.Uint64

  // collector has been Run()
  started atomic.Bool
}

func New(src ble.Source, m *beacon.Merger) *Session {
  return &Session{
    src: src,
    merger: m,
  }
}

func (s *Session) onObservation(o beacon.Observation) {
  s.received.Add(1)

  outcome, err := s.merger.Ingest(o)

  if err != nil {
    invalidObservationsCounter.Inc()

    log.Warn().
      Err(err).
      Stringer("Observation", o).
      Msg("Dropping invalid observation from scan source")

    return
  }

  observationsCounter.WithLabelValues(outcome.String()).Inc()

  if outcome == beacon.OutcomePromoted {
    log.Info().
      Str("ID", o.ID).
      Msg("New beacon confirmed")
  }
}

// Run scans until ctx is done, restarting failed scans with exponential backoff. It returns
// nil on cancellation and the last scan error once the retry budget is exhausted.
func (s *Session) Run(ctx context.Context, opts Options) error {
  if !s.started.CompareAndSwap(false, true) {
    panic("attempted to call session.Session.Run() twice")
  }

  defer s.src.Stop()

  log.Info().
    Int("MaxRetries", opts.MaxRetries).
    Dur("BackoffFactor", opts.BackoffFactor).
    Msg("Starting scan session")

  attempt := 0

  for {
    s.received.Store(0)

    err := s.src.Scan(ctx, s.onObservation)

    if ctx.Err() != nil || utils.IsContextDone(err) {
      log.Info().
        Stringer("Stats", statsStringer(s.merger.Stats())).
        Msg("Scan session is shutting down")

      return nil
    }

    if err == nil {
      err = ble.ErrScanStopped
    }

    scanFailuresCounter.Inc()

    if s.received.Load() > 0 {
      attempt = 0
    }

    if attempt >= opts.MaxRetries {
      return fmt.Errorf("scan failed after %d retries: %w", attempt, err)
    }

    backoff := opts.BackoffFactor << int64(attempt)

    if backoff < 0 {
      backoff = DefaultBackoffFactor
    }

    log.Warn().
      Err(err).
      Int("RetriesLeft", opts.MaxRetries - attempt).
      Dur("Backoff", backoff).
      Msg("Scan failed - will retry")

    attempt += 1

    select {
    case <-ctx.Done():
      log.Trace().Err(ctx.Err()).Msg("Retry aborted by context cancel")
      return nil
    case <-time.After(backoff):
    }
  }
}

type statsStringer beacon.Stats

func (s statsStringer) String() string {
  return fmt.Sprintf("pending=%d confirmed=%d", s.Pending, s.Confirmed)
}
