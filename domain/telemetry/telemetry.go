// Package telemetry defines the device metric vocabulary shared by the
// dashboard, the topology editor and the upstream client: which fields can
// be charted, over which ranges, at which resolutions, with which
// aggregations.
package telemetry

import (
	"time"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// Metric fields the upstream collector reports per device.
const (
	FieldCPU    = "cpu"
	FieldRAM    = "ram"
	FieldDisk   = "disk"
	FieldNetRx  = "net_rx"
	FieldNetTx  = "net_tx"
	FieldTemp   = "temp"
	FieldUptime = "uptime"
)

// Fields lists the chartable metric fields in display order.
var Fields = []string{FieldCPU, FieldRAM, FieldDisk, FieldNetRx, FieldNetTx, FieldTemp, FieldUptime}

// Ranges lists the accepted history windows.
var Ranges = []string{"30m", "1h", "6h", "24h", "7d"}

// Intervals lists the accepted downsampling steps.
var Intervals = []string{"1m", "5m", "15m", "1h"}

// Aggregations lists the accepted downsampling functions.
var Aggregations = []string{"mean", "min", "max", "last"}

// Defaults applied when a query omits a dimension.
const (
	DefaultField    = FieldCPU
	DefaultRange    = "1h"
	DefaultInterval = "1m"
	DefaultAgg      = "mean"
)

func contains(set []string, v string) bool {
	for _, candidate := range set {
		if v == candidate {
			return true
		}
	}
	return false
}

// ValidRange reports whether rng is an accepted history window.
func ValidRange(rng string) bool {
	return contains(Ranges, rng)
}

// Query is a validated metric history request for one device.
type Query struct {
	Device   string
	Field    string
	Range    string
	Interval string
	Agg      string
}

// NewQuery fills defaults for empty dimensions and rejects values outside
// the vocabulary. The device name is required.
func NewQuery(device, field, rng, interval, agg string) (Query, error) {
	if device == "" {
		return Query{}, pkgerrors.NewValidationError("device is required")
	}
	q := Query{Device: device, Field: field, Range: rng, Interval: interval, Agg: agg}
	if q.Field == "" {
		q.Field = DefaultField
	}
	if q.Range == "" {
		q.Range = DefaultRange
	}
	if q.Interval == "" {
		q.Interval = DefaultInterval
	}
	if q.Agg == "" {
		q.Agg = DefaultAgg
	}

	if !contains(Fields, q.Field) {
		return Query{}, pkgerrors.NewValidationError("unknown metric field: " + q.Field)
	}
	if !contains(Ranges, q.Range) {
		return Query{}, pkgerrors.NewValidationError("unknown range: " + q.Range)
	}
	if !contains(Intervals, q.Interval) {
		return Query{}, pkgerrors.NewValidationError("unknown interval: " + q.Interval)
	}
	if !contains(Aggregations, q.Agg) {
		return Query{}, pkgerrors.NewValidationError("unknown aggregation: " + q.Agg)
	}
	return q, nil
}

// Point is one sample of a metric series.
type Point struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// Series is a device's downsampled history for one field.
type Series struct {
	Device string  `json:"device"`
	Field  string  `json:"field"`
	Points []Point `json:"points"`
}

// LastStats is the most recent snapshot the collector has for a device.
type LastStats struct {
	Device    string    `json:"device"`
	IP        string    `json:"ip,omitempty"`
	Gateway   string    `json:"gateway,omitempty"`
	CPU       float64   `json:"cpu"`
	RAM       float64   `json:"ram"`
	Disk      float64   `json:"disk"`
	NetRx     float64   `json:"net_rx"`
	NetTx     float64   `json:"net_tx"`
	Temp      float64   `json:"temp"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// FreshWithin reports whether the snapshot is recent enough, against the
// liveness window, to call the device online.
func (s LastStats) FreshWithin(window time.Duration, now time.Time) bool {
	if s.Timestamp.IsZero() {
		return false
	}
	return now.Sub(s.Timestamp) <= window
}
