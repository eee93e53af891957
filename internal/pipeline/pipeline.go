// Package pipeline implements the per-job orchestration from spec.md §4.2:
// decode the stored upload, run it through the language gate, transcribe a
// snippet, translate if a target language was requested, and transition the
// job to its terminal state. It is grounded on the original service's
// worker/runner.py process_one.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/asr"
	"github.com/cisco7507/langid-mr/internal/decoder"
	"github.com/cisco7507/langid-mr/internal/langgate"
	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
	"github.com/cisco7507/langid-mr/internal/store"
	"github.com/cisco7507/langid-mr/internal/translate"
	"github.com/cisco7507/langid-mr/pkg/logger"
)

const snippetMaxSeconds = 15.0
const sampleRate = 16000
const snippetWordLimit = 10

// now is overridable in tests for deterministic processing-time metrics.
var now = func() time.Time { return time.Now().UTC() }

// Pipeline wires together every per-job collaborator: decoder, gate, ASR
// manager, translator, job store and metrics registry.
type Pipeline struct {
	Store      store.JobStore
	Decoder    decoder.Decoder
	Gate       *langgate.Gate
	ASR        *asr.Manager
	Translator translate.Translator
	Metrics    *metrics.Registry
	MaxRetries int
}

// New builds a Pipeline from its collaborators.
func New(st store.JobStore, dec decoder.Decoder, gate *langgate.Gate, mgr *asr.Manager, tr translate.Translator, reg *metrics.Registry, maxRetries int) *Pipeline {
	return &Pipeline{
		Store:      st,
		Decoder:    dec,
		Gate:       gate,
		ASR:        mgr,
		Translator: tr,
		Metrics:    reg,
		MaxRetries: maxRetries,
	}
}

// ProcessJob implements queue.JobProcessor: it loads the job (already
// transitioned to running by ClaimNext), runs the full pipeline, and writes
// back either a succeeded result or a queued-for-retry/failed error.
func (p *Pipeline) ProcessJob(ctx context.Context, jobID string) error {
	job, err := p.Store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}

	p.Metrics.JobsRunning.Inc()
	defer p.Metrics.JobsRunning.Dec()

	result, procErr := p.runJob(ctx, job)
	if procErr != nil {
		return p.handleFailure(ctx, job, procErr)
	}
	return p.handleSuccess(ctx, job, result)
}

func (p *Pipeline) runJob(ctx context.Context, job *models.Job) (*models.PipelineResult, error) {
	data, err := os.ReadFile(job.InputPath)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", apperrors.ErrInvalidAudio)
	}

	audio, err := p.Decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	p.Metrics.AudioSeconds.Observe(float64(len(audio)) / sampleRate)

	gateResult, err := p.Gate.Detect(ctx, audio)
	if err != nil {
		p.recordGateOutcome(gateResult, false)
		return nil, err
	}
	p.recordGateOutcome(gateResult, true)

	if gateResult.MusicOnly {
		return &models.PipelineResult{
			Language:        "none",
			Probability:     gateResult.Probability,
			Text:            "",
			GateDecision:    gateResult.MarshalDecision(),
			GateMeta:        gateResult.Meta,
			MusicOnly:       true,
			DetectionMethod: string(gateResult.Method),
			Raw: map[string]any{
				"text":       "",
				"translated": false,
			},
		}, nil
	}

	engine, err := p.ASR.EnsureRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting asr engine: %w", apperrors.ErrTranscriptionTransient)
	}

	snippetSamples := int(snippetMaxSeconds * sampleRate)
	if snippetSamples > len(audio) {
		snippetSamples = len(audio)
	}
	snippetAudio := audio[:snippetSamples]

	useVad := gateResult.Probability != nil && *gateResult.Probability < p.Gate.Thresholds.LangDetectMinProb

	transcribed, err := engine.Transcribe(ctx, snippetAudio, asr.Options{
		ForceLanguage: languageForTranscribe(gateResult),
		VadFilter:     useVad,
		BeamSize:      5,
		BestOf:        5,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribing snippet: %w", apperrors.ErrTranscriptionTransient)
	}

	text := segmentsText(transcribed.Segments)
	snippet := firstWords(text, snippetWordLimit)

	result := &models.PipelineResult{
		Language:        gateResult.Language,
		Probability:     gateResult.Probability,
		Text:            snippet,
		GateDecision:    gateResult.MarshalDecision(),
		GateMeta:        gateResult.Meta,
		MusicOnly:       gateResult.MusicOnly,
		DetectionMethod: string(gateResult.Method),
		Raw: map[string]any{
			"text":    snippet,
			"segments": len(transcribed.Segments),
		},
	}

	if job.TargetLang != nil && *job.TargetLang != "" && *job.TargetLang != gateResult.Language {
		translated, err := p.Translator.Translate(ctx, text, gateResult.Language, *job.TargetLang)
		if err != nil {
			return nil, fmt.Errorf("translating: %w", apperrors.ErrTranscriptionTransient)
		}
		result.Raw["translated"] = true
		result.Raw["result"] = translated
		result.Raw["target_lang"] = *job.TargetLang
		if gateResult.Language == "en" {
			p.Metrics.TranslateEn2Fr.Inc()
		} else {
			p.Metrics.TranslateFr2En.Inc()
		}
	} else {
		result.Raw["translated"] = false
	}

	return result, nil
}

// languageForTranscribe pins the snippet transcription to the gate's chosen
// language, including the language the fallback scoring picked. It returns
// "" (autodetect) only when the gate reported no language or "none"
// (music-only, handled separately).
func languageForTranscribe(g models.GateResult) string {
	if g.Language == "" || g.Language == "none" {
		return ""
	}
	return g.Language
}

func segmentsText(segments []asr.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		if s.Text == "" {
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func (p *Pipeline) recordGateOutcome(g models.GateResult, ok bool) {
	view := metrics.GateResultView{
		GateDecision: g.GateDecision.String(),
		Language:     g.Language,
		MusicOnly:    g.MusicOnly,
		MidZone:      g.Meta.MidZone,
		VadUsed:      g.UseVad,
	}
	p.Metrics.RecordGatePath(view)
	if g.GateDecision == models.DecisionFallback {
		p.Metrics.FallbackUsed.Inc()
	}
	if ok && g.GateDecision != models.DecisionFallback {
		p.Metrics.AutodetectAccept.Inc()
	} else {
		p.Metrics.AutodetectReject.Inc()
	}
}

func (p *Pipeline) handleSuccess(ctx context.Context, job *models.Job, result *models.PipelineResult) error {
	finished := now()
	result.ProcessingMs = finished.Sub(job.CreatedAt).Milliseconds()

	preFinalize := 90
	if err := p.Store.Update(ctx, job.ID, store.UpdateFields{Progress: &preFinalize}); err != nil {
		return fmt.Errorf("persisting pre-finalize progress: %w", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	resultJSON := string(raw)

	succeeded := models.StatusSucceeded
	progress := 100
	if err := p.Store.Update(ctx, job.ID, store.UpdateFields{
		Status:     &succeeded,
		Progress:   &progress,
		ResultJSON: &resultJSON,
	}); err != nil {
		return fmt.Errorf("persisting success: %w", err)
	}

	p.Metrics.JobsTotal.WithLabelValues(string(models.StatusSucceeded)).Inc()
	p.Metrics.ProcessingSeconds.Observe(finished.Sub(job.CreatedAt).Seconds())
	logger.JobCompleted(job.ID, finished.Sub(job.CreatedAt), result.Language)
	return nil
}

func (p *Pipeline) handleFailure(ctx context.Context, job *models.Job, procErr error) error {
	attempts := job.Attempts + 1
	errMsg := procErr.Error()

	nextStatus := models.StatusQueued
	if attempts > p.MaxRetries || errors.Is(procErr, apperrors.ErrStrictGateReject) || errors.Is(procErr, apperrors.ErrInvalidAudio) {
		nextStatus = models.StatusFailed
	}

	if err := p.Store.Update(ctx, job.ID, store.UpdateFields{
		Status:   &nextStatus,
		Attempts: &attempts,
		Error:    &errMsg,
	}); err != nil {
		return fmt.Errorf("persisting failure: %w", err)
	}

	p.Metrics.JobsTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	logger.JobFailed(job.ID, now().Sub(job.CreatedAt), procErr)
	return procErr
}
