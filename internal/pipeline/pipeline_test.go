package pipeline

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cisco7507/langid-mr/internal/asr"
	"github.com/cisco7507/langid-mr/internal/decoder"
	"github.com/cisco7507/langid-mr/internal/langgate"
	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
	"github.com/cisco7507/langid-mr/internal/store"
	"github.com/cisco7507/langid-mr/internal/translate"

	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory store.JobStore stand-in, scoped to this
// test file so pipeline tests don't need a real database.
type memStore struct {
	jobs map[string]*models.Job

	// onUpdate, when set, is invoked with every fields argument passed to
	// Update, letting tests observe the sequence of writes a single job
	// goes through.
	onUpdate func(store.UpdateFields)
}

func newMemStore() *memStore { return &memStore{jobs: map[string]*models.Job{}} }

func (s *memStore) Create(_ context.Context, job *models.Job) error {
	s.jobs[job.ID] = job
	return nil
}
func (s *memStore) Get(_ context.Context, id string) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}
func (s *memStore) List(_ context.Context, _ models.JobFilter) ([]models.Job, error) { return nil, nil }
func (s *memStore) ClaimNext(_ context.Context) (*models.Job, error)                 { return nil, nil }
func (s *memStore) Update(_ context.Context, id string, fields store.UpdateFields) error {
	if s.onUpdate != nil {
		s.onUpdate(fields)
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if fields.Status != nil {
		job.Status = *fields.Status
	}
	if fields.Attempts != nil {
		job.Attempts = *fields.Attempts
	}
	if fields.Progress != nil {
		job.Progress = *fields.Progress
	}
	if fields.ResultJSON != nil {
		job.ResultJSON = fields.ResultJSON
	}
	if fields.Error != nil {
		job.Error = fields.Error
	}
	return nil
}
func (s *memStore) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.jobs, id)
	}
	return nil
}

func writeWav(t *testing.T, dir string, seconds float64) string {
	t.Helper()
	const rate = 16000
	numSamples := int(seconds * rate)
	dataSize := numSamples * 2

	path := filepath.Join(dir, "sample.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	write := func(v any) {
		require.NoError(t, binary.Write(f, binary.LittleEndian, v))
	}
	f.WriteString("RIFF")
	write(uint32(36 + dataSize))
	f.WriteString("WAVE")
	f.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1)) // PCM
	write(uint16(1)) // mono
	write(uint32(rate))
	write(uint32(rate * 2))
	write(uint16(2))
	write(uint16(16))
	f.WriteString("data")
	write(uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		write(int16(0))
	}
	return path
}

func defaultThresholds() langgate.Thresholds {
	return langgate.Thresholds{
		AllowedLangs:          []string{"en", "fr"},
		LangDetectMinProb:     0.60,
		MidLower:              0.60,
		MidUpper:              0.79,
		MinStopwordEn:         0.15,
		MinStopwordFr:         0.15,
		StopwordMargin:        0.05,
		MinTokensHeuristic:    10,
		MinTokensSpeech:       6,
		MinStopwordSpeech:     0.10,
		ProbeDurationS:        30,
	}
}

func TestPipeline_HighConfidenceEnglish_Succeeds(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, 5)

	st := newMemStore()
	job := &models.Job{
		ID:        "n1-abc",
		Status:    models.StatusRunning,
		CreatedAt: time.Now().UTC(),
		InputPath: path,
	}
	require.NoError(t, st.Create(context.Background(), job))

	fake := asr.NewFakeEngine()
	fake.Responses = []asr.Result{
		{
			DetectedLanguage:     "en",
			LanguageProbability:  0.95,
			Segments: []asr.Segment{
				{Text: "the quick brown fox and the lazy dog with us are for this"},
			},
		},
	}

	gate := langgate.NewGate(fake, defaultThresholds())
	mgr := asr.NewManager(func() asr.Engine { return fake })
	reg := metrics.New()

	p := New(st, decoder.NewWavDecoder(), gate, mgr, translate.NewFakeTranslator(), reg, 2)

	err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	got, err := st.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSucceeded, got.Status)
	require.NotNil(t, got.ResultJSON)
}

func TestPipeline_MusicOnly_SkipsTranscriptionAndTranslation(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, 5)

	st := newMemStore()
	targetLang := "en"
	job := &models.Job{
		ID:         "n1-music",
		Status:     models.StatusRunning,
		CreatedAt:  time.Now().UTC(),
		InputPath:  path,
		TargetLang: &targetLang,
	}
	require.NoError(t, st.Create(context.Background(), job))

	fake := asr.NewFakeEngine()
	fake.Responses = []asr.Result{
		{
			DetectedLanguage:    "fr",
			LanguageProbability: 0.5,
			Segments:            []asr.Segment{{Text: "soft background music"}},
		},
	}

	gate := langgate.NewGate(fake, defaultThresholds())
	mgr := asr.NewManager(func() asr.Engine { return fake })
	reg := metrics.New()

	p := New(st, decoder.NewWavDecoder(), gate, mgr, translate.NewFakeTranslator(), reg, 2)

	err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	got, err := st.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSucceeded, got.Status)
	require.Contains(t, *got.ResultJSON, `"language":"none"`)
	require.Contains(t, *got.ResultJSON, `"gate_decision":"NO_SPEECH_MUSIC_ONLY"`)
	require.Contains(t, *got.ResultJSON, `"translated":false`)
	require.NotContains(t, *got.ResultJSON, `"target_lang"`)
	require.Equal(t, 1, fake.CallCount())
}

func TestPipeline_VadRetry_DisablesVadOnSnippetTranscribe(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, 5)

	st := newMemStore()
	job := &models.Job{
		ID:        "n1-vad",
		Status:    models.StatusRunning,
		CreatedAt: time.Now().UTC(),
		InputPath: path,
	}
	require.NoError(t, st.Create(context.Background(), job))

	fake := asr.NewFakeEngine()
	fake.Responses = []asr.Result{
		// probe: below MidLower, triggers the VAD retry branch
		{DetectedLanguage: "en", LanguageProbability: 0.3},
		// vad retry probe: reports >= LangDetectMinProb, so vad_retry accepts
		{DetectedLanguage: "en", LanguageProbability: 0.81, Segments: []asr.Segment{{Text: "hello there friend"}}},
	}
	// snippet transcription call: forced to "en", so it reads from
	// ForcedResponses rather than consuming Responses.
	fake.ForcedResponses["en"] = asr.Result{
		DetectedLanguage: "en",
		Segments:         []asr.Segment{{Text: "hello there friend"}},
	}

	gate := langgate.NewGate(fake, defaultThresholds())
	mgr := asr.NewManager(func() asr.Engine { return fake })
	reg := metrics.New()

	p := New(st, decoder.NewWavDecoder(), gate, mgr, translate.NewFakeTranslator(), reg, 2)

	err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	require.Len(t, fake.SnippetCalls(), 1)
	require.False(t, fake.SnippetCalls()[0].VadFilter, "reported probability 0.81 is >= LANG_DETECT_MIN_PROB, so VAD must be off for the snippet")
}

func TestPipeline_HandleSuccess_RecordsPreFinalizeProgressCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, 5)

	st := newMemStore()
	job := &models.Job{
		ID:        "n1-progress",
		Status:    models.StatusRunning,
		CreatedAt: time.Now().UTC(),
		InputPath: path,
	}
	require.NoError(t, st.Create(context.Background(), job))

	fake := asr.NewFakeEngine()
	fake.Responses = []asr.Result{
		{
			DetectedLanguage:    "en",
			LanguageProbability: 0.95,
			Segments:            []asr.Segment{{Text: "the quick brown fox and the lazy dog with us are for this"}},
		},
	}

	gate := langgate.NewGate(fake, defaultThresholds())
	mgr := asr.NewManager(func() asr.Engine { return fake })
	reg := metrics.New()

	p := New(st, decoder.NewWavDecoder(), gate, mgr, translate.NewFakeTranslator(), reg, 2)

	var progressUpdates []int
	st.onUpdate = func(fields store.UpdateFields) {
		if fields.Progress != nil {
			progressUpdates = append(progressUpdates, *fields.Progress)
		}
	}

	require.NoError(t, p.ProcessJob(context.Background(), job.ID))
	require.Equal(t, []int{90, 100}, progressUpdates)
}

func TestPipeline_StrictReject_FailsJob(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, 5)

	st := newMemStore()
	job := &models.Job{
		ID:        "n1-xyz",
		Status:    models.StatusRunning,
		CreatedAt: time.Now().UTC(),
		InputPath: path,
	}
	require.NoError(t, st.Create(context.Background(), job))

	fake := asr.NewFakeEngine()
	fake.Responses = []asr.Result{
		{DetectedLanguage: "de", LanguageProbability: 0.9},
		{DetectedLanguage: "de", LanguageProbability: 0.9},
	}

	thresholds := defaultThresholds()
	thresholds.EnfrStrictReject = true
	gate := langgate.NewGate(fake, thresholds)
	mgr := asr.NewManager(func() asr.Engine { return fake })
	reg := metrics.New()

	p := New(st, decoder.NewWavDecoder(), gate, mgr, translate.NewFakeTranslator(), reg, 2)

	err := p.ProcessJob(context.Background(), job.ID)
	require.Error(t, err)

	got, err := st.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
}
