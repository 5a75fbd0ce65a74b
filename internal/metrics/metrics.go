// Package metrics provides Prometheus metrics for sync runs.
//
// A Recorder is created per client against a caller-supplied registerer.
// Every method is safe to call on a nil *Recorder, so components record
// unconditionally and metrics stay optional.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline phases observed by PhaseDuration.
const (
	PhaseScan      = "scan"
	PhaseResolve   = "resolve"
	PhaseInventory = "inventory"
	PhasePlan      = "plan"
	PhaseExecute   = "execute"
)

// Operation outcomes used as label values.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
)

// Recorder holds the collectors for one client.
type Recorder struct {
	filesScanned       prometheus.Counter
	scanErrors         prometheus.Counter
	duplicatesExcluded prometheus.Counter
	remoteObjects      prometheus.Gauge
	uploadsTotal       *prometheus.CounterVec
	deletesTotal       *prometheus.CounterVec
	deleteBatches      *prometheus.CounterVec
	bytesUploaded      prometheus.Counter
	uploadDuration     prometheus.Histogram
	phaseDuration      *prometheus.HistogramVec
	lastRunHealthy     prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge
}

// New registers the sync collectors with reg.
// A nil reg creates collectors that are never registered.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		filesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_files_scanned_total",
			Help: "Local files admitted by inclusion rules and hashed",
		}),
		scanErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_scan_errors_total",
			Help: "Local files skipped because they could not be read",
		}),
		duplicatesExcluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_duplicates_excluded_total",
			Help: "Assets excluded as byte-identical duplicates of a canonical asset",
		}),
		remoteObjects: factory.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_remote_objects",
			Help: "Objects found under the key prefix by the last inventory",
		}),
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_uploads_total",
			Help: "Upload operations by result",
		}, []string{"result"}),
		deletesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_deletes_total",
			Help: "Deleted keys by result",
		}, []string{"result"}),
		deleteBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assetsync_delete_batches_total",
			Help: "Delete batch calls by result",
		}, []string{"result"}),
		bytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "assetsync_bytes_uploaded_total",
			Help: "Bytes successfully uploaded",
		}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetsync_upload_duration_seconds",
			Help:    "Duration of individual uploads",
			Buckets: prometheus.DefBuckets,
		}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assetsync_phase_duration_seconds",
			Help:    "Duration of each pipeline phase",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"phase"}),
		lastRunHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_last_run_healthy",
			Help: "1 if the last run finished without failed operations",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "assetsync_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// FileScanned records one hashed file.
func (r *Recorder) FileScanned() {
	if r == nil {
		return
	}
	r.filesScanned.Inc()
}

// ScanError records one unreadable file.
func (r *Recorder) ScanError() {
	if r == nil {
		return
	}
	r.scanErrors.Inc()
}

// DuplicatesExcluded records n excluded duplicates.
func (r *Recorder) DuplicatesExcluded(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.duplicatesExcluded.Add(float64(n))
}

// RemoteObjects sets the inventory size.
func (r *Recorder) RemoteObjects(n int) {
	if r == nil {
		return
	}
	r.remoteObjects.Set(float64(n))
}

// Upload records the outcome of one upload.
func (r *Recorder) Upload(result string, bytes int64, d time.Duration) {
	if r == nil {
		return
	}
	r.uploadsTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		r.bytesUploaded.Add(float64(bytes))
		r.uploadDuration.Observe(d.Seconds())
	}
}

// Deletes records n deleted keys with the given result.
func (r *Recorder) Deletes(result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.deletesTotal.WithLabelValues(result).Add(float64(n))
}

// DeleteBatch records one delete batch call.
func (r *Recorder) DeleteBatch(result string) {
	if r == nil {
		return
	}
	r.deleteBatches.WithLabelValues(result).Inc()
}

// PhaseDuration observes how long a pipeline phase took.
func (r *Recorder) PhaseDuration(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RunFinished records the health of a completed run.
func (r *Recorder) RunFinished(healthy bool, at time.Time) {
	if r == nil {
		return
	}
	if healthy {
		r.lastRunHealthy.Set(1)
	} else {
		r.lastRunHealthy.Set(0)
	}
	r.lastRunTimestamp.Set(float64(at.Unix()))
}

// Timer measures a phase and records it on Stop.
type Timer struct {
	r     *Recorder
	phase string
	start time.Time
}

// StartPhase starts timing phase.
func (r *Recorder) StartPhase(phase string) *Timer {
	return &Timer{r: r, phase: phase, start: time.Now()}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.r.PhaseDuration(t.phase, d)
	return d
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format used by the node_exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
