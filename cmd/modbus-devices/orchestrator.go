// cmd/modbus-devices/orchestrator.go
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-devices/internal/metrics"
	"github.com/tamzrod/modbus-devices/internal/poller"
	"github.com/tamzrod/modbus-devices/internal/schema"
	"github.com/tamzrod/modbus-devices/internal/status"
)

// orchestrate owns the status of one device: it folds poll results into the
// tracker, ticks seconds-in-error at 1 Hz and exports metrics.
func orchestrate(
	ctx context.Context,
	c *poller.Coordinator,
	tr *status.Tracker,
	m *metrics.Metrics,
	in <-chan poller.PollResult,
	log zerolog.Logger,
) {
	name := c.Name()
	m.SetStatus(name, tr.Snapshot())

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	lastOK := time.Now()
	stale := staleAfter(c.Schedule())

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			m.ObserveCycle(res)
			m.SetFast(name, c.FastActive())

			if res.Err == nil {
				lastOK = res.At
				exportPoints(m, name, c.Device())
			} else {
				log.Warn().Err(res.Err).Str("group", res.Group).Msg("poll cycle failed")
			}

			prev := tr.Snapshot().Health
			if tr.Apply(res) {
				s := tr.Snapshot()
				m.SetStatus(name, s)
				if s.Health != prev {
					log.Info().
						Str("health", status.HealthName(s.Health)).
						Uint16("last_error_code", s.LastErrorCode).
						Msg("health changed")
				}
			}

		case <-secTicker.C:
			// Data is stale once a healthy device misses two whole cycles.
			if time.Since(lastOK) > stale && tr.Stale() {
				log.Warn().Time("last_ok", lastOK).Msg("data stale")
				m.SetStatus(name, tr.Snapshot())
			}

			// Tick 1 Hz while not OK.
			if tr.Tick() {
				m.SetStatus(name, tr.Snapshot())
			}
		}
	}
}

// staleAfter uses the normal interval so fast mode never shortens the window.
func staleAfter(cfg poller.Config) time.Duration {
	return 2*cfg.Interval + cfg.CycleTimeout
}

// exportPoints publishes every numeric point of a device as a gauge.
// The UI group only mirrors Config points and is skipped.
func exportPoints(m *metrics.Metrics, device string, dev *schema.Device) {
	for _, g := range dev.Groups() {
		if g.ID == dev.UI() {
			continue
		}
		for _, k := range dev.Keys(g.ID) {
			m.SetPoint(device, poller.PointEvent{
				Group: g.ID,
				Name:  g.Name,
				Key:   k,
				Value: dev.Value(g.ID, k),
			})
		}
	}
}
