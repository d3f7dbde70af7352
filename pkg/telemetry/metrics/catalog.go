package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics tracks model catalog resolution and pricing data quality.
//
// Metrics:
//   - meridian_catalog_models: models in the active catalog
//   - meridian_catalog_default_priced_models: models priced by the default sentinel
//   - meridian_catalog_resolutions_total: resolution outcomes (exact, alias, fuzzy, miss)
//   - meridian_catalog_reloads_total: hot-reload attempts by result
type CatalogMetrics struct {
	models              prometheus.Gauge
	defaultPriced       prometheus.Gauge
	resolutions         *prometheus.CounterVec
	reloads             *prometheus.CounterVec
	unmeteredDispatches *prometheus.CounterVec
}

// NewCatalogMetrics creates and registers catalog collectors.
func NewCatalogMetrics(registry *prometheus.Registry) *CatalogMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	cm := &CatalogMetrics{
		models: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "meridian",
				Subsystem: "catalog",
				Name:      "models",
				Help:      "Models in the active catalog",
			},
		),

		defaultPriced: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "meridian",
				Subsystem: "catalog",
				Name:      "default_priced_models",
				Help:      "Models whose pricing fell through to the default sentinel",
			},
		),

		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "catalog",
				Name:      "resolutions_total",
				Help:      "Model id resolutions by match kind",
			},
			[]string{"kind"},
		),

		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Catalog hot-reload attempts by result",
			},
			[]string{"result"},
		),

		unmeteredDispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "catalog",
				Name:      "unmetered_dispatches_total",
				Help:      "Successful dispatches not billed because the model is default-priced",
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(cm.models, cm.defaultPriced, cm.resolutions, cm.reloads, cm.unmeteredDispatches)
	return cm
}

// SetCatalogSize updates the model count and default-priced gauges after a
// (re)load.
func (cm *CatalogMetrics) SetCatalogSize(models, defaultPriced int) {
	cm.models.Set(float64(models))
	cm.defaultPriced.Set(float64(defaultPriced))
}

// RecordResolution records one resolution by match kind
// ("exact", "alias", "fuzzy", "miss", "ambiguous").
func (cm *CatalogMetrics) RecordResolution(kind string) {
	cm.resolutions.WithLabelValues(kind).Inc()
}

// RecordReload records a hot-reload attempt ("applied" or "rejected").
func (cm *CatalogMetrics) RecordReload(result string) {
	cm.reloads.WithLabelValues(result).Inc()
}

// RecordUnmeteredDispatch records a successful request served by a
// default-priced model and therefore not billed.
func (cm *CatalogMetrics) RecordUnmeteredDispatch(model string) {
	cm.unmeteredDispatches.WithLabelValues(model).Inc()
}
