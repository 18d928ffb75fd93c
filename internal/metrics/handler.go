package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics endpoint.
type Summary struct {
	HTTP      httpSummary   `json:"http"`
	Media     mediaSummary  `json:"media"`
	Auth      authInfo      `json:"auth"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	Audit     auditInfo     `json:"audit"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type mediaSummary struct {
	Uploads          float64 `json:"uploads"`
	Deletes          float64 `json:"deletes"`
	BytesStored      float64 `json:"bytesStored"`
	PresignsUpload   float64 `json:"presignsUpload"`
	PresignsDownload float64 `json:"presignsDownload"`
	Thumbnails       float64 `json:"thumbnails"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type auditInfo struct {
	Events      float64 `json:"events"`
	Flushes     float64 `json:"flushes"`
	FlushErrors float64 `json:"flushErrors"`
}

type dbInfo struct {
	TotalConns         float64 `json:"totalConns"`
	IdleConns          float64 `json:"idleConns"`
	AcquiredConns      float64 `json:"acquiredConns"`
	MaxConns           float64 `json:"maxConns"`
	EmptyAcquires      float64 `json:"emptyAcquires"`
	AcquireWaitSeconds float64 `json:"acquireWaitSeconds"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler serves the live metrics summary as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam["huddle_server_start_time_seconds"])
	summary := Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["huddle_http_requests_total"]),
			ErrorRate:     computeErrorRate(fam["huddle_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["huddle_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["huddle_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["huddle_http_request_duration_seconds"], 0.99),
		},
		Media: mediaSummary{
			Uploads:          sumCounter(fam["huddle_media_uploads_total"]),
			Deletes:          sumCounter(fam["huddle_media_deletes_total"]),
			BytesStored:      sumCounter(fam["huddle_media_bytes_stored_total"]),
			PresignsUpload:   counterWithLabel(fam["huddle_presign_issued_total"], "direction", "upload"),
			PresignsDownload: counterWithLabel(fam["huddle_presign_issued_total"], "direction", "download"),
			Thumbnails:       sumCounter(fam["huddle_thumbnails_generated_total"]),
		},
		Auth: authInfo{
			Failures:  sumCounter(fam["huddle_auth_failures_total"]),
			Successes: sumCounter(fam["huddle_auth_successes_total"]),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["huddle_ratelimit_rejections_total"]),
		},
		Audit: auditInfo{
			Events:      sumCounter(fam["huddle_audit_events_total"]),
			Flushes:     sumCounter(fam["huddle_audit_flushes_total"]),
			FlushErrors: counterWithLabel(fam["huddle_audit_flushes_total"], "status", "error"),
		},
		DB: dbInfo{
			TotalConns:         gaugeValue(fam["huddle_db_pool_total_conns"]),
			IdleConns:          gaugeValue(fam["huddle_db_pool_idle_conns"]),
			AcquiredConns:      gaugeValue(fam["huddle_db_pool_acquired_conns"]),
			MaxConns:           gaugeValue(fam["huddle_db_pool_max_conns"]),
			EmptyAcquires:      sumCounter(fam["huddle_db_pool_empty_acquires_total"]),
			AcquireWaitSeconds: sumCounter(fam["huddle_db_pool_acquire_wait_seconds_total"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetGauge() == nil {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

func counterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile estimates a percentile from merged histogram buckets.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	buckets := make(map[float64]uint64)
	var totalCount uint64
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			buckets[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(buckets))
	for ub := range buckets {
		bounds = append(bounds, ub)
	}
	sort.Float64s(bounds)

	target := uint64(math.Ceil(q * float64(totalCount)))
	for _, ub := range bounds {
		if buckets[ub] >= target {
			return ub
		}
	}
	if len(bounds) > 0 {
		return bounds[len(bounds)-1]
	}
	return 0
}
