// internal/metrics/metrics.go
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/modbus-devices/internal/poller"
	"github.com/tamzrod/modbus-devices/internal/status"
)

const namespace = "modbus_devices"

// Result labels.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultInitError = "init_error"
)

// Metrics holds the daemon's collectors. All series are labeled by device.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	writes        *prometheus.CounterVec
	fast          *prometheus.GaugeVec

	health         *prometheus.GaugeVec
	secondsInError *prometheus.GaugeVec
	lastError      *prometheus.GaugeVec

	points *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"device", "result"}),

		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one poll cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"device"}),

		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Point writes by result.",
		}, []string{"device", "result"}),

		fast: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fast_poll",
			Help:      "1 while the device polls at the fast interval.",
		}, []string{"device"}),

		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health",
			Help:      "Device health code (0 unknown, 1 ok, 2 error, 3 stale, 4 disabled).",
		}, []string{"device"}),

		secondsInError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seconds_in_error",
			Help:      "Seconds the device has not been healthy.",
		}, []string{"device"}),

		lastError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_error_code",
			Help:      "Code of the last error, 0 when healthy.",
		}, []string{"device"}),

		points: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "point_value",
			Help:      "Last known numeric value of a data point.",
		}, []string{"device", "group", "point"}),
	}

	for _, c := range []prometheus.Collector{
		m.cycles, m.cycleDuration, m.writes, m.fast,
		m.health, m.secondsInError, m.lastError, m.points,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ---- observers ----

// ObserveCycle records one poll result and the device's fast state.
func (m *Metrics) ObserveCycle(res poller.PollResult) {
	result := ResultOK
	switch {
	case errors.Is(res.Err, poller.ErrDeviceInit):
		result = ResultInitError
	case res.Err != nil:
		result = ResultError
	}

	m.cycles.WithLabelValues(res.Device, result).Inc()
	m.cycleDuration.WithLabelValues(res.Device).Observe(res.Duration.Seconds())
}

func (m *Metrics) ObserveWrite(device string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.writes.WithLabelValues(device, result).Inc()
}

func (m *Metrics) SetFast(device string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	m.fast.WithLabelValues(device).Set(v)
}

func (m *Metrics) SetStatus(device string, s status.Snapshot) {
	m.health.WithLabelValues(device).Set(float64(s.Health))
	m.secondsInError.WithLabelValues(device).Set(float64(s.SecondsInError))
	m.lastError.WithLabelValues(device).Set(float64(s.LastErrorCode))
}

// SetPoint exports a numeric point value. Unknown or text values remove the
// series so a stale number is never scraped.
func (m *Metrics) SetPoint(device string, ev poller.PointEvent) {
	f, ok := ev.Value.Float()
	if !ok {
		m.points.DeleteLabelValues(device, ev.Name, ev.Key)
		return
	}
	m.points.WithLabelValues(device, ev.Name, ev.Key).Set(f)
}
