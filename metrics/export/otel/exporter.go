package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	devAuth "github.com/MrEthical07/devAuth"
	"github.com/MrEthical07/devAuth/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() devAuth.MetricsSnapshot
	AuditDropped() uint64
}

// healthSource is optional; when the source implements it the exporter also
// publishes devauth_backend_up.
type healthSource interface {
	Health(ctx context.Context) devAuth.HealthStatus
}

var (
	backendCache = metric.WithAttributeSet(attribute.NewSet(attribute.String("backend", "cache")))
	backendStore = metric.WithAttributeSet(attribute.NewSet(attribute.String("backend", "store")))
)

type counterInstrument struct {
	id devAuth.MetricID
	c  metric.Int64ObservableCounter
}

// histogramInstrument mirrors a fixed-bucket histogram as one gauge per
// series: bucket counts keyed by an "le" attribute, plus the total count.
type histogramInstrument struct {
	id      devAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics as observable OTel instruments read
// from one snapshot per collection.
type OTelExporter struct {
	source       metricsSource
	health       healthSource
	registration metric.Registration

	counters     []counterInstrument
	histograms   []histogramInstrument
	auditDropped metric.Int64ObservableCounter
	backendUp    metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter that observe engine.
func NewOTelExporter(meter metric.Meter, engine *devAuth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	e.health, _ = source.(healthSource)

	observables, err := e.createInstruments(meter)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) createInstruments(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, c: c})
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative bucket counts by upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram buckets %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogramInstrument{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	if e.health != nil {
		up, err := meter.Int64ObservableGauge(internaldefs.BackendUpName,
			metric.WithDescription(internaldefs.BackendUpHelp))
		if err != nil {
			return nil, fmt.Errorf("create backend gauge: %w", err)
		}
		e.backendUp = up
		observables = append(observables, up)
	}

	return observables, nil
}

func (e *OTelExporter) observe(ctx context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.c, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[h.id]))
		for i, le := range internaldefs.HistogramBounds {
			o.ObserveInt64(h.buckets, int64(cumulative[i]),
				metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le))))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.health != nil {
		st := e.health.Health(ctx)
		o.ObserveInt64(e.backendUp, boolToInt(st.CacheAvailable), backendCache)
		o.ObserveInt64(e.backendUp, boolToInt(st.StoreAvailable), backendStore)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
