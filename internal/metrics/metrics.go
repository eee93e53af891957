// Package metrics registers the process-wide Prometheus collectors used by
// the worker pool, language gate and cluster service, grounded on the
// original service's app/metrics.py, app/gate_metrics.py and
// metrics/prometheus.py.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Gate path / pipeline mode labels, mirroring gate_metrics.py's canonical
// constant set exactly (these strings are part of the metrics wire
// contract, not free to rename).
const (
	GatePathHighConf  = "high_conf_base"
	GatePathMidZoneEn = "mid_zone_en"
	GatePathMidZoneFr = "mid_zone_fr"
	GatePathVadRetry  = "vad_retry"
	GatePathMusicOnly = "music_only"
	GatePathFallback  = "fallback"
	GatePathUnknown   = "unknown"

	PipelineModeBase      = "BASE"
	PipelineModeVad       = "VAD"
	PipelineModeMidZone   = "MID_ZONE"
	PipelineModeMusicOnly = "MUSIC_ONLY"
	PipelineModeFallback  = "FALLBACK"
	PipelineModeUnknown   = "UNKNOWN"
)

// Registry bundles every collector so it can be constructed once at startup
// and handed to the workers, gate, ingress and cluster service, instead of
// relying on package-level globals the way the original module does.
type Registry struct {
	reg *prometheus.Registry

	JobsTotal          *prometheus.CounterVec
	JobsRunning        prometheus.Gauge
	ProcessingSeconds  prometheus.Histogram
	ActiveWorkers      prometheus.Gauge
	AudioSeconds       prometheus.Histogram
	AutodetectAccept   prometheus.Counter
	AutodetectReject   prometheus.Counter
	FallbackUsed       prometheus.Counter
	TranslateEn2Fr     prometheus.Counter
	TranslateFr2En     prometheus.Counter
	GatePathDecisions  *prometheus.CounterVec
	JobsSubmitted      *prometheus.CounterVec
	JobsOwned          *prometheus.CounterVec
	JobsActive         *prometheus.GaugeVec
	NodeUp             *prometheus.GaugeVec
	NodeLastHealth     *prometheus.GaugeVec
}

// New constructs and registers every collector against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "langid_jobs_total",
			Help: "Jobs processed by status",
		}, []string{"status"}),

		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "langid_jobs_running",
			Help: "Number of jobs currently running",
		}),

		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "langid_processing_seconds",
			Help:    "End-to-end processing latency per job",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),

		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "langid_active_workers",
			Help: "Number of active worker goroutines",
		}),

		AudioSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "langid_audio_seconds",
			Help:    "Input audio duration per job (seconds)",
			Buckets: []float64{1, 3, 10, 30, 60, 120, 300, 900, 1800},
		}),

		AutodetectAccept: factory.NewCounter(prometheus.CounterOpts{
			Name: "langid_autodetect_accept",
			Help: "Language detections that passed the gate",
		}),

		AutodetectReject: factory.NewCounter(prometheus.CounterOpts{
			Name: "langid_autodetect_reject",
			Help: "Language detections that failed the gate and were rejected or sent to fallback",
		}),

		FallbackUsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "langid_fallback_used",
			Help: "Number of times the EN/FR scoring fallback was used",
		}),

		TranslateEn2Fr: factory.NewCounter(prometheus.CounterOpts{
			Name: "langid_translate_direction_en2fr",
			Help: "Number of translations from English to French",
		}),

		TranslateFr2En: factory.NewCounter(prometheus.CounterOpts{
			Name: "langid_translate_direction_fr2en",
			Help: "Number of translations from French to English",
		}),

		GatePathDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "langid_gate_path_decisions_total",
			Help: "Gate decisions classified into stable path/pipeline-mode labels",
		}, []string{"gate_path", "gate_decision", "pipeline_mode", "language", "music_only"}),

		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "langid_jobs_submitted_total",
			Help: "Total jobs submitted via POST /jobs",
		}, []string{"ingress_node", "target_node"}),

		JobsOwned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "langid_jobs_owned_total",
			Help: "Total jobs owned/created locally",
		}, []string{"owner_node"}),

		JobsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "langid_jobs_active",
			Help: "Number of currently active jobs",
		}, []string{"owner_node"}),

		NodeUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "langid_node_up",
			Help: "Node up status (1=up, 0=down)",
		}, []string{"node"}),

		NodeLastHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "langid_node_last_health_timestamp_seconds",
			Help: "Timestamp of last successful health check",
		}, []string{"node"}),
	}
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// LabeledValue is one label-set -> value pair pulled out of a gathered
// metric family, used by the HTTP layer to build JSON views (gate-path
// breakdowns, per-node submission counts) without threading raw prometheus
// types into internal/api.
type LabeledValue struct {
	Labels map[string]string
	Value  float64
}

// Values gathers every series registered under name, counter or gauge
// alike, for handlers that need the current label/value pairs as plain
// data (/metrics/gate-paths, /cluster/local-metrics).
func (r *Registry) Values(name string) []LabeledValue {
	var mfs []*dto.MetricFamily
	mfs, err := r.reg.Gather()
	if err != nil {
		return nil
	}

	var out []LabeledValue
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, LabeledValue{Labels: labels, Value: value})
		}
	}
	return out
}

// HistogramStats sums the sample count/sum across every series registered
// under name, used to compute an average duration without exposing dto
// types to callers.
func (r *Registry) HistogramStats(name string) (sum float64, count uint64, ok bool) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return 0, 0, false
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			h := m.GetHistogram()
			if h == nil {
				continue
			}
			sum += h.GetSampleSum()
			count += h.GetSampleCount()
			ok = true
		}
	}
	return sum, count, ok
}

// GateResultView is the subset of a gate decision the classifiers need;
// kept narrow so the pipeline doesn't have to import prometheus types.
type GateResultView struct {
	GateDecision string
	Language     string
	MusicOnly    bool
	MidZone      bool
	VadUsed      bool
}

// ClassifyGatePath ports gate_metrics.classify_gate_path.
func ClassifyGatePath(v GateResultView) string {
	decision := strings.ToLower(strings.TrimSpace(v.GateDecision))

	switch {
	case v.MusicOnly, decision == "no_speech_music_only":
		return GatePathMusicOnly
	case decision == "fallback":
		return GatePathFallback
	case decision == "vad_retry":
		return GatePathVadRetry
	case decision == "accepted_mid_zone_en":
		return GatePathMidZoneEn
	case decision == "accepted_mid_zone_fr":
		return GatePathMidZoneFr
	case decision == "accepted_high_conf":
		return GatePathHighConf
	}

	if v.MidZone {
		if strings.ToLower(v.Language) == "fr" {
			return GatePathMidZoneFr
		}
		return GatePathMidZoneEn
	}

	return GatePathUnknown
}

// ClassifyPipelineMode ports gate_metrics.classify_pipeline_mode.
func ClassifyPipelineMode(v GateResultView) string {
	decision := strings.ToLower(strings.TrimSpace(v.GateDecision))

	switch {
	case decision == "fallback":
		return PipelineModeFallback
	case decision == "no_speech_music_only", v.MusicOnly:
		return PipelineModeMusicOnly
	case decision == "accepted_mid_zone_en", decision == "accepted_mid_zone_fr":
		return PipelineModeMidZone
	case v.MidZone:
		return PipelineModeMidZone
	case decision == "vad_retry", v.VadUsed:
		return PipelineModeVad
	case decision == "accepted_high_conf":
		return PipelineModeBase
	}

	return PipelineModeUnknown
}

// RecordGatePath increments the classifying counter for one finalized gate
// decision.
func (r *Registry) RecordGatePath(v GateResultView) {
	gatePath := ClassifyGatePath(v)
	pipelineMode := ClassifyPipelineMode(v)

	decision := v.GateDecision
	if decision == "" {
		decision = "unknown"
	}
	language := v.Language
	if language == "" {
		language = "unknown"
	}
	musicOnly := "false"
	if v.MusicOnly {
		musicOnly = "true"
	}

	r.GatePathDecisions.WithLabelValues(gatePath, decision, pipelineMode, language, musicOnly).Inc()
}
