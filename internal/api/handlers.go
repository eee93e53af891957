package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/cluster"
	"github.com/cisco7507/langid-mr/internal/langcode"
	"github.com/cisco7507/langid-mr/internal/langgate"
	"github.com/cisco7507/langid-mr/internal/models"
	"github.com/cisco7507/langid-mr/pkg/logger"
)

// Healthz answers a bare liveness probe.
//
//	@Summary	Liveness probe
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health answers a readiness probe that also names the responding node, the
// endpoint peers poll to build their cluster health view.
//
//	@Summary	Readiness probe
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "node": h.selfName()})
}

// Metrics exposes the process's collectors in Prometheus text format.
//
//	@Summary	Prometheus metrics
//	@Produce	text/plain
//	@Success	200	{string}	string
//	@Router		/metrics [get]
func (h *Handler) Metrics(c *gin.Context) {
	promhttp.HandlerFor(h.metrics.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON summarizes local queue depth and average processing time as
// JSON, for callers that would rather not parse the Prometheus text format.
//
//	@Summary	Local job totals as JSON
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/metrics/json [get]
func (h *Handler) MetricsJSON(c *gin.Context) {
	ctx := c.Request.Context()
	counts := map[models.JobStatus]int{}
	for _, status := range []models.JobStatus{
		models.StatusQueued, models.StatusRunning, models.StatusSucceeded, models.StatusFailed,
	} {
		st := status
		jobs, err := h.store.List(ctx, models.JobFilter{Status: &st})
		if err != nil {
			h.writeError(c, err)
			return
		}
		counts[status] = len(jobs)
	}

	avgMs := 0.0
	if sum, count, ok := h.metrics.HistogramStats("langid_processing_seconds"); ok && count > 0 {
		avgMs = (sum / float64(count)) * 1000
	}

	total := counts[models.StatusQueued] + counts[models.StatusRunning] +
		counts[models.StatusSucceeded] + counts[models.StatusFailed]

	c.JSON(http.StatusOK, gin.H{
		"node":              h.selfName(),
		"queued":            counts[models.StatusQueued],
		"running":           counts[models.StatusRunning],
		"succeeded":         counts[models.StatusSucceeded],
		"failed":            counts[models.StatusFailed],
		"total":             total,
		"avg_processing_ms": avgMs,
	})
}

// MetricsGatePaths breaks the gate-path decision counter down by path, with
// each path's share of the total, the one view the raw Prometheus counter
// can't answer directly.
//
//	@Summary	Gate-path distribution with percentages
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/metrics/gate-paths [get]
func (h *Handler) MetricsGatePaths(c *gin.Context) {
	totals := map[string]float64{}
	var grandTotal float64
	for _, lv := range h.metrics.Values("langid_gate_path_decisions_total") {
		path := lv.Labels["gate_path"]
		if path == "" {
			path = "unknown"
		}
		totals[path] += lv.Value
		grandTotal += lv.Value
	}

	paths := make([]string, 0, len(totals))
	for p := range totals {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	type row struct {
		GatePath   string  `json:"gate_path"`
		Count      float64 `json:"count"`
		Percentage float64 `json:"percentage"`
	}
	rows := make([]row, 0, len(paths))
	for _, p := range paths {
		count := totals[p]
		pct := 0.0
		if grandTotal > 0 {
			pct = count / grandTotal * 100
		}
		rows = append(rows, row{GatePath: p, Count: count, Percentage: pct})
	}

	c.JSON(http.StatusOK, gin.H{"total": grandTotal, "gate_paths": rows})
}

// validateUpload checks the claimed extension and size against configured
// limits, ported from the original service's upload guard in app/guards.py.
func (h *Handler) validateUpload(fh *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !h.cfg.ExtAllowed(ext) {
		return apperrors.NewUploadError(fmt.Sprintf("unsupported extension %q", ext))
	}
	if fh.Size > h.cfg.MaxUploadBytes() {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", apperrors.ErrUploadTooLarge, fh.Size, h.cfg.MaxUploadBytes())
	}
	return nil
}

// buildFileHeader wraps raw bytes in a one-field multipart body, the shape
// CreateJobByURL needs to funnel a fetched file through the same
// distribution path as a directly uploaded one.
func buildFileHeader(filename string, data []byte) (*multipart.FileHeader, []byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, nil, "", err
	}
	contentType := w.FormDataContentType()
	if err := w.Close(); err != nil {
		return nil, nil, "", err
	}

	encoded := buf.Bytes()
	reader := multipart.NewReader(bytes.NewReader(encoded), w.Boundary())
	form, err := reader.ReadForm(int64(len(encoded)) + 1024)
	if err != nil {
		return nil, nil, "", err
	}
	fhs := form.File["file"]
	if len(fhs) == 0 {
		return nil, nil, "", fmt.Errorf("no file part in generated form")
	}
	return fhs[0], encoded, contentType, nil
}

// CreateJob accepts a multipart upload and either distributes it to a peer
// per the round-robin schedule or creates it locally, per spec.md §4.4.
// Requests carrying internal=1 (proxied submissions, or any caller that
// wants to bypass distribution) always create locally.
//
//	@Summary	Submit an audio file for language detection
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file		formData	file	true	"audio file"
//	@Param		target_lang	query		string	false	"optional translation target"
//	@Success	200	{object}	models.Job
//	@Failure	400	{object}	map[string]interface{}
//	@Failure	413	{object}	map[string]interface{}
//	@Router		/jobs [post]
func (h *Handler) CreateJob(c *gin.Context) {
	internal := c.Query("internal") == "1"
	targetLang := c.Query("target_lang")
	contentType := c.ContentType()

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	h.distributeOrCreate(c, fileHeader, bodyBytes, contentType, targetLang, internal)
}

// CreateJobByURL fetches the audio at the given URL and otherwise behaves
// exactly like CreateJob.
//
//	@Summary	Submit an audio file by URL for language detection
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	models.Job
//	@Failure	400	{object}	map[string]interface{}
//	@Router		/jobs/by-url [post]
func (h *Handler) CreateJobByURL(c *gin.Context) {
	var req struct {
		URL        string `json:"url"`
		TargetLang string `json:"target_lang"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	resp, err := http.Get(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("fetching url: %v", err)})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("fetching url: status %d", resp.StatusCode)})
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxUploadBytes()+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read fetched content"})
		return
	}

	filename := path.Base(req.URL)
	if filename == "" || filename == "." || filename == "/" {
		filename = "download.wav"
	}

	fileHeader, rawBody, contentType, err := buildFileHeader(filename, data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to package fetched content"})
		return
	}

	internal := c.Query("internal") == "1"
	h.distributeOrCreate(c, fileHeader, rawBody, contentType, req.TargetLang, internal)
}

// distributeOrCreate validates the upload, then either creates the job
// locally (internal=1) or walks the round-robin target list, proxying to
// each candidate until one accepts the submission or every candidate is
// exhausted, in which case the job is created locally as a last resort.
func (h *Handler) distributeOrCreate(c *gin.Context, fileHeader *multipart.FileHeader, rawBody []byte, contentType, targetLang string, internal bool) {
	if err := h.validateUpload(fileHeader); err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()

	if internal {
		job, err := h.createLocal(ctx, fileHeader, targetLang)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
		return
	}

	cfg := h.watcher.Get()
	attempts := len(cfg.Nodes)
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		target := h.scheduler.NextTarget()
		h.metrics.JobsSubmitted.WithLabelValues(h.selfName(), target).Inc()

		if target == h.selfName() {
			job, err := h.createLocal(ctx, fileHeader, targetLang)
			if err != nil {
				h.writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, job)
			return
		}

		result, err := h.router.ProxySubmission(ctx, target, rawBody, contentType, targetLang)
		if err != nil {
			logger.PeerUnreachable(target, err.Error())
			continue
		}
		if result.StatusCode == http.StatusServiceUnavailable {
			continue
		}
		ct := result.ContentType
		if ct == "" {
			ct = "application/json"
		}
		c.Data(result.StatusCode, ct, result.Body)
		return
	}

	job, err := h.createLocal(ctx, fileHeader, targetLang)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// createLocal saves the upload under this node's storage root, runs the
// synchronous strict-reject check when ENFR_STRICT_REJECT is set, and
// queues the job. The job id carries this node's name as a prefix so
// cluster.ParseJobOwner can route future reads back here.
func (h *Handler) createLocal(ctx context.Context, fileHeader *multipart.FileHeader, targetLang string) (*models.Job, error) {
	jobID := h.selfName() + "-" + uuid.NewString()

	savedPath, err := h.fileService.SaveUpload(fileHeader, h.cfg.StorageDir, jobID, h.cfg.ExtAllowed)
	if err != nil {
		return nil, apperrors.NewUploadError(err.Error())
	}

	if h.cfg.EnfrStrictReject {
		if err := h.runStrictGate(ctx, savedPath); err != nil {
			os.Remove(savedPath)
			return nil, err
		}
	}

	job := &models.Job{
		ID:               jobID,
		Status:           models.StatusQueued,
		InputPath:        savedPath,
		OriginalFilename: fileHeader.Filename,
	}
	if targetLang != "" {
		job.TargetLang = &targetLang
	}
	if err := h.store.Create(ctx, job); err != nil {
		os.Remove(savedPath)
		return nil, fmt.Errorf("creating job record: %w", err)
	}

	h.metrics.JobsOwned.WithLabelValues(h.selfName()).Inc()
	return job, nil
}

// runStrictGate decodes the saved artifact and runs it through the same
// gate decision machine the pipeline uses later, so an EN/FR-only
// deployment can reject unsupported audio before it ever reaches the
// queue, per spec.md §4.4.
func (h *Handler) runStrictGate(ctx context.Context, savedPath string) error {
	data, err := os.ReadFile(savedPath)
	if err != nil {
		return apperrors.ErrInvalidAudio
	}
	audio, err := h.decoder.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidAudio, err)
	}
	if _, err := h.gate.Detect(ctx, audio); err != nil {
		if lang, prob, ok := langgate.StrictRejectDetails(err); ok {
			p := prob
			return &apperrors.GateRejectError{Language: lang, Probability: &p}
		}
		return err
	}
	return nil
}

// ListJobs returns this node's own jobs, optionally filtered.
//
//	@Summary	List local jobs
//	@Produce	json
//	@Param		status	query		string	false	"filter by status"
//	@Param		since	query		string	false	"RFC3339 timestamp lower bound"
//	@Param		limit	query		int		false	"max rows"
//	@Success	200	{array}		models.Job
//	@Router		/jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	filter := parseJobFilter(c, true)
	jobs, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// DeleteJobs removes a batch of local jobs plus their storage artifacts.
//
//	@Summary	Delete a batch of jobs
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/jobs [delete]
func (h *Handler) DeleteJobs(c *gin.Context) {
	var req struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.Delete(c.Request.Context(), req.JobIDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": req.JobIDs})
}

// proxyJob forwards method/pathSuffix for a job id owned by another node
// and writes the peer's response straight through.
func (h *Handler) proxyJob(c *gin.Context, id, pathSuffix, method string) {
	result, err := h.router.ProxyToOwner(c.Request.Context(), id, pathSuffix, method, c.Request.URL.Query(), nil, c.Request.Header)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ct := result.ContentType
	if ct == "" {
		ct = "application/json"
	}
	c.Data(result.StatusCode, ct, result.Body)
}

func (h *Handler) isLocalJob(id string) bool {
	cfg := h.watcher.Get()
	return cluster.IsLocal(id, cfg.SelfName, cfg.Nodes)
}

// GetJob returns a job's current state, proxying to its owner when it
// wasn't submitted to this node.
//
//	@Summary	Get a job's status
//	@Produce	json
//	@Success	200	{object}	models.Job
//	@Failure	404	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if !h.isLocalJob(id) {
		h.proxyJob(c, id, "", http.MethodGet)
		return
	}
	job, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetJobResult returns the stored pipeline result, or 409 if the job hasn't
// reached a successful terminal state yet. The optional lang_format query
// param (iso639-1, iso639-2b, iso639-2t, iso639-3) adds language_label and
// language_iso fields for display purposes; the canonical en/fr code in
// "language" is unaffected.
//
//	@Summary	Get a job's detection result
//	@Produce	json
//	@Param		lang_format	query		string	false	"iso639-1, iso639-2b, iso639-2t, or iso639-3"
//	@Success	200	{object}	models.PipelineResult
//	@Failure	404	{object}	map[string]interface{}
//	@Failure	409	{object}	map[string]interface{}
//	@Router		/jobs/{id}/result [get]
func (h *Handler) GetJobResult(c *gin.Context) {
	id := c.Param("id")
	if !h.isLocalJob(id) {
		h.proxyJob(c, id, "/result", http.MethodGet)
		return
	}
	job, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if job.Status != models.StatusSucceeded {
		body := gin.H{"error": "job has not succeeded", "status": job.Status}
		if job.Status == models.StatusFailed && job.Error != nil {
			body["job_error"] = *job.Error
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	if job.ResultJSON == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "job succeeded without a stored result"})
		return
	}

	format, ok := isoFormatParam(c.Query("lang_format"))
	if !ok {
		c.Data(http.StatusOK, "application/json", []byte(*job.ResultJSON))
		return
	}

	var result models.PipelineResult
	if err := json.Unmarshal([]byte(*job.ResultJSON), &result); err != nil {
		c.Data(http.StatusOK, "application/json", []byte(*job.ResultJSON))
		return
	}
	enriched := gin.H{
		"language":         result.Language,
		"probability":      result.Probability,
		"text":             result.Text,
		"gate_decision":    result.GateDecision,
		"gate_meta":        result.GateMeta,
		"music_only":       result.MusicOnly,
		"detection_method": result.DetectionMethod,
		"processing_ms":    result.ProcessingMs,
		"raw":              result.Raw,
		"language_label":   langcode.Label(result.Language),
		"language_iso":     langcode.ToISOCode(result.Language, format),
	}
	c.JSON(http.StatusOK, enriched)
}

// isoFormatParam maps the lang_format query value to a langcode.Format. An
// empty or unrecognized value means "no enrichment requested".
func isoFormatParam(v string) (langcode.Format, bool) {
	switch v {
	case "iso639-1":
		return langcode.ISO639_1, true
	case "iso639-2b":
		return langcode.ISO639_2B, true
	case "iso639-2t":
		return langcode.ISO639_2T, true
	case "iso639-3":
		return langcode.ISO639_3, true
	default:
		return 0, false
	}
}

// GetJobAudio streams the original uploaded audio inline, with a
// content-type sniffed from the stored artifact's extension.
//
//	@Summary	Download the source audio for a job
//	@Produce	audio/*
//	@Success	200
//	@Failure	404	{object}	map[string]interface{}
//	@Router		/jobs/{id}/audio [get]
func (h *Handler) GetJobAudio(c *gin.Context) {
	id := c.Param("id")
	if !h.isLocalJob(id) {
		h.proxyJob(c, id, "/audio", http.MethodGet)
		return
	}
	job, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	exists, err := h.fileService.FileExists(job.InputPath)
	if err != nil || !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "audio artifact not found"})
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(job.InputPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Type", mimeType)
	c.File(job.InputPath)
}

// DeleteJob removes a single job, proxying to its owner when necessary.
//
//	@Summary	Delete a job
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	404	{object}	map[string]interface{}
//	@Router		/jobs/{id} [delete]
func (h *Handler) DeleteJob(c *gin.Context) {
	id := c.Param("id")
	if !h.isLocalJob(id) {
		h.proxyJob(c, id, "", http.MethodDelete)
		return
	}
	if err := h.store.Delete(c.Request.Context(), []string{id}); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": []string{id}})
}

// AdminJobs returns this node's own jobs, filtered by status/since, for the
// cluster aggregator to fan out to. Unlike ListJobs it never accepts a
// limit: the aggregator applies limiting once, after the cluster-wide
// merge.
//
//	@Summary	List local jobs for cluster aggregation
//	@Produce	json
//	@Success	200	{array}	models.Job
//	@Router		/admin/jobs [get]
func (h *Handler) AdminJobs(c *gin.Context) {
	filter := parseJobFilter(c, false)
	jobs, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// ClusterJobs merges every reachable peer's admin job list with this node's
// own, sorted newest first and capped at an optional limit.
//
//	@Summary	Cluster-wide job view
//	@Produce	json
//	@Success	200	{object}	cluster.ClusterJobsResult
//	@Router		/cluster/jobs [get]
func (h *Handler) ClusterJobs(c *gin.Context) {
	limit := 0
	if lim := c.Query("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil {
			limit = n
		}
	}
	selfJobs, err := h.store.List(c.Request.Context(), models.JobFilter{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	result := h.aggregator.AggregateJobs(c.Request.Context(), selfJobs, limit)
	c.JSON(http.StatusOK, result)
}

// ClusterNodes returns this node's view of every configured peer's health.
//
//	@Summary	Cluster node health
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/cluster/nodes [get]
func (h *Handler) ClusterNodes(c *gin.Context) {
	cfg := h.watcher.Get()
	snapshot := h.health.Snapshot()

	type nodeView struct {
		Name     string     `json:"name"`
		Status   string     `json:"status"`
		LastSeen *time.Time `json:"last_seen"`
	}

	names := cfg.SortedNodeNames()
	nodes := make([]nodeView, 0, len(names))
	for _, name := range names {
		if name == cfg.SelfName {
			now := time.Now().UTC()
			nodes = append(nodes, nodeView{Name: name, Status: "up", LastSeen: &now})
			continue
		}
		st := snapshot[name]
		status := st.Status
		if status == "" {
			status = "unknown"
		}
		nodes = append(nodes, nodeView{Name: name, Status: status, LastSeen: st.LastSeen})
	}

	c.JSON(http.StatusOK, gin.H{"self": cfg.SelfName, "nodes": nodes})
}

// localMetricsSnapshot builds this node's contribution to the cluster
// metrics aggregation: jobs owned, jobs currently active (the worker pool's
// active-goroutine count, a practical stand-in for a per-owner active-job
// counter since claims and processing happen in the same process) and the
// submission counters where this node was the ingress point.
func (h *Handler) localMetricsSnapshot(ctx context.Context) cluster.LocalMetricsSnapshot {
	self := h.selfName()

	owned := 0
	if jobs, err := h.store.List(ctx, models.JobFilter{}); err == nil {
		owned = len(jobs)
	}

	active := 0
	if h.pool != nil {
		active = h.pool.ActiveWorkers()
	}

	var submitted []cluster.SubmissionCount
	for _, lv := range h.metrics.Values("langid_jobs_submitted_total") {
		if lv.Labels["ingress_node"] != self {
			continue
		}
		submitted = append(submitted, cluster.SubmissionCount{
			Ingress: lv.Labels["ingress_node"],
			Target:  lv.Labels["target_node"],
			Count:   int(lv.Value),
		})
	}

	return cluster.LocalMetricsSnapshot{
		Node:           self,
		JobsOwnedTotal: owned,
		JobsActive:     active,
		JobsSubmitted:  submitted,
	}
}

// ClusterLocalMetrics exposes this node's raw metric state, the shape its
// peers scrape to build the cluster-wide metrics summary.
//
//	@Summary	This node's raw metrics snapshot
//	@Produce	json
//	@Success	200	{object}	cluster.LocalMetricsSnapshot
//	@Router		/cluster/local-metrics [get]
func (h *Handler) ClusterLocalMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.localMetricsSnapshot(c.Request.Context()))
}

// ClusterMetricsSummary fans out to every peer's local-metrics endpoint and
// returns the merged per-node summary.
//
//	@Summary	Cluster-wide metrics summary
//	@Produce	json
//	@Success	200	{object}	cluster.MetricsSummary
//	@Router		/cluster/metrics-summary [get]
func (h *Handler) ClusterMetricsSummary(c *gin.Context) {
	ctx := c.Request.Context()
	summary := h.aggregator.AggregateMetrics(ctx, h.localMetricsSnapshot(ctx))
	c.JSON(http.StatusOK, summary)
}

// parseJobFilter reads status/since (and, when withLimit is true, limit)
// from the query string into a models.JobFilter.
func parseJobFilter(c *gin.Context, withLimit bool) models.JobFilter {
	filter := models.JobFilter{}
	if s := c.Query("status"); s != "" {
		st := models.JobStatus(s)
		filter.Status = &st
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if withLimit {
		if lim := c.Query("limit"); lim != "" {
			if n, err := strconv.Atoi(lim); err == nil {
				filter.Limit = n
			}
		}
	}
	return filter
}

// writeError maps the apperrors sentinel taxonomy to the HTTP status codes
// spec.md §7 assigns them.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})

	case errors.Is(err, apperrors.ErrStrictGateReject):
		var ge *apperrors.GateRejectError
		body := gin.H{"error": "strict_gate_reject"}
		if errors.As(err, &ge) {
			body["language"] = ge.Language
			body["probability"] = ge.Probability
		}
		c.JSON(http.StatusBadRequest, body)

	case errors.Is(err, apperrors.ErrInvalidUpload), errors.Is(err, apperrors.ErrInvalidAudio):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, apperrors.ErrPeerUnreachable):
		var pe *apperrors.PeerError
		owner := ""
		if errors.As(err, &pe) {
			owner = pe.Owner
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "owner_node_unreachable", "owner": owner})

	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})

	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		logger.Error("unhandled request error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
