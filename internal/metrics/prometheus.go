package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitecraft"

// PrometheusRecorder implements Recorder with client_golang collectors.
type PrometheusRecorder struct {
	publish         *prom.CounterVec
	publishDuration prom.Histogram
	unpublish       *prom.CounterVec
	compensations   *prom.CounterVec
	assetUploads    *prom.CounterVec
	subdomainChecks *prom.CounterVec
	ingest          *prom.CounterVec
	httpDuration    *prom.HistogramVec
}

// NewPrometheusRecorder registers all collectors on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		publish: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by result",
		}, []string{"result"}),
		publishDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent uploading and recording a publication",
			Buckets:   prom.DefBuckets,
		}),
		unpublish: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unpublish_total",
			Help:      "Unpublish attempts by result",
		}, []string{"result"}),
		compensations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_compensations_total",
			Help:      "Blob compensations after a failed record update",
		}, []string{"action"}),
		assetUploads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_uploads_total",
			Help:      "Asset uploads by result",
		}, []string{"result"}),
		subdomainChecks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "subdomain_checks_total",
			Help:      "Availability checks by reason",
		}, []string{"reason"}),
		ingest: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Page views and form submissions received",
		}, []string{"kind", "result"}),
		httpDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(pr.publish, pr.publishDuration, pr.unpublish, pr.compensations,
		pr.assetUploads, pr.subdomainChecks, pr.ingest, pr.httpDuration)
	return pr
}

func (p *PrometheusRecorder) IncPublish(result string) { p.publish.WithLabelValues(result).Inc() }

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncUnpublish(result string) { p.unpublish.WithLabelValues(result).Inc() }

func (p *PrometheusRecorder) IncCompensation(action string) {
	p.compensations.WithLabelValues(action).Inc()
}

func (p *PrometheusRecorder) IncAssetUpload(result string) {
	p.assetUploads.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncSubdomainCheck(reason string) {
	if reason == "" {
		reason = "available"
	}
	p.subdomainChecks.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncIngest(kind, result string) {
	p.ingest.WithLabelValues(kind, result).Inc()
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
