// Package langgate implements the language-gate decision state machine from
// spec.md §4.3, ported from the original service's app/lang_gate.py. It
// takes a decoded audio probe, runs it through the ASR engine, and decides
// whether the clip is accepted as English/French speech, is music-only, or
// falls through to the scoring fallback.
package langgate

import (
	"context"
	"regexp"
	"strings"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/asr"
	"github.com/cisco7507/langid-mr/internal/models"
)

const sampleRate = 16000

// Thresholds mirrors the environment-overridable parameters in spec.md §4.3.
type Thresholds struct {
	AllowedLangs          []string
	LangDetectMinProb     float64
	EnfrStrictReject      bool
	MidLower              float64
	MidUpper              float64
	MinStopwordEn         float64
	MinStopwordFr         float64
	StopwordMargin        float64
	MinTokensHeuristic    int
	MinTokensSpeech       int
	MinStopwordSpeech     float64
	ProbeDurationS        int
}

var enStopwords = map[string]bool{
	"the": true, "and": true, "to": true, "of": true, "in": true, "you": true,
	"your": true, "for": true, "is": true, "on": true, "it": true, "that": true,
	"with": true, "this": true, "as": true, "at": true, "be": true, "are": true,
	"we": true, "our": true, "us": true,
}

var frStopwords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"et": true, "ou": true, "mais": true, "que": true, "qui": true, "pour": true,
	"avec": true, "sur": true, "pas": true, "ce": true, "cette": true, "est": true,
	"sont": true, "je": true, "tu": true, "il": true, "elle": true, "nous": true,
	"vous": true, "ils": true, "elles": true,
}

var musicKeywords = map[string]bool{"music": true, "musique": true}

var musicFillerTokens = map[string]bool{
	"background": true, "bg": true, "only": true, "instrumental": true,
	"ambience": true, "ambiance": true, "ambient": true, "soundtrack": true,
	"track": true, "outro": true, "intro": true, "playing": true, "play": true,
	"song": true, "soft": true, "theme": true, "jingle": true, "de": true,
	"du": true, "fond": true,
}

var bracketPairs = map[rune]rune{'[': ']', '(': ')', '{': '}', '<': '>'}

var musicUnicodeMarkers = []rune{'♪', '♫', '♩', '♬', '♭', '♯'}

var tokenSplitRe = regexp.MustCompile(`[^\p{L}\p{N}']+`)

func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	parts := tokenSplitRe.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stopwordRatio(text string, set map[string]bool) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func stripOuterBrackets(text string) string {
	stripped := []rune(text)
	for len(stripped) >= 2 {
		closing, ok := bracketPairs[stripped[0]]
		if !ok || stripped[len(stripped)-1] != closing {
			break
		}
		stripped = []rune(strings.TrimSpace(string(stripped[1 : len(stripped)-1])))
	}
	return string(stripped)
}

// isMusicOnlyTranscript ports is_music_only_transcript: every token must be
// a music keyword or a filler, and at least one keyword must survive filler
// removal.
func isMusicOnlyTranscript(text string) bool {
	working := strings.TrimSpace(text)
	if working == "" {
		return false
	}

	for _, marker := range musicUnicodeMarkers {
		working = strings.ReplaceAll(working, string(marker), " music ")
	}

	working = stripOuterBrackets(strings.ToLower(working))
	if working == "" {
		return false
	}

	tokens := tokenize(working)
	if len(tokens) == 0 {
		return false
	}

	for _, tok := range tokens {
		if !musicKeywords[tok] && !musicFillerTokens[tok] {
			return false
		}
	}

	var filtered []string
	for _, tok := range tokens {
		if !musicFillerTokens[tok] {
			filtered = append(filtered, tok)
		}
	}
	if len(filtered) == 0 {
		return false
	}

	allKeywords := true
	for _, tok := range filtered {
		if !musicKeywords[tok] {
			allKeywords = false
			break
		}
	}
	return allKeywords
}

func containsAllowed(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Gate runs the decision state machine against a configured Engine and
// thresholds.
type Gate struct {
	Engine     asr.Engine
	Thresholds Thresholds
}

func NewGate(engine asr.Engine, thresholds Thresholds) *Gate {
	return &Gate{Engine: engine, Thresholds: thresholds}
}

func (g *Gate) probe(samples []float32) []float32 {
	probeSamples := g.Thresholds.ProbeDurationS * sampleRate
	if probeSamples <= 0 || probeSamples > len(samples) {
		return samples
	}
	return samples[:probeSamples]
}

func transcriptOf(segments []asr.Segment) string {
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

func safeProb(p float64) float64 {
	if p < 0 || p > 1 {
		return 0
	}
	return p
}

func (g *Gate) buildMeta(midZone bool, enRatio, frRatio float64, tokenCount int, vadUsed, musicOnly bool) models.GateMeta {
	t := g.Thresholds
	return models.GateMeta{
		MidZone:           midZone,
		EnRatio:           enRatio,
		FrRatio:           frRatio,
		TokenCount:        tokenCount,
		VadUsed:           vadUsed,
		MusicOnly:         musicOnly,
		MidLower:          t.MidLower,
		MidUpper:          t.MidUpper,
		MinStopwordEn:     t.MinStopwordEn,
		MinStopwordFr:     t.MinStopwordFr,
		StopwordMargin:    t.StopwordMargin,
		MinTokens:         t.MinTokensHeuristic,
		MinTokensSpeech:   t.MinTokensSpeech,
		MinStopwordSpeech: t.MinStopwordSpeech,
		LangDetectMinProb: t.LangDetectMinProb,
	}
}

func floatPtr(v float64) *float64 { return &v }

// Detect runs the full §4.3 state machine over the decoded audio buffer and
// returns the resulting GateResult, or ErrStrictGateReject when strict mode
// rejects the clip.
func (g *Gate) Detect(ctx context.Context, audio []float32) (models.GateResult, error) {
	t := g.Thresholds
	probeAudio := g.probe(audio)

	res0, err := g.Engine.Transcribe(ctx, probeAudio, asr.Options{VadFilter: false, BeamSize: 1})
	if err != nil {
		return models.GateResult{}, apperrors.ErrGateTransient
	}

	transcript := transcriptOf(res0.Segments)
	detectedLang := res0.DetectedLanguage
	prob := safeProb(res0.LanguageProbability)

	tokens := tokenize(transcript)
	tokenCount := len(tokens)
	musicOnly := isMusicOnlyTranscript(transcript)

	enRatio := stopwordRatio(transcript, enStopwords)
	frRatio := stopwordRatio(transcript, frStopwords)

	if musicOnly {
		midZone := prob >= t.MidLower && prob < t.MidUpper
		return models.GateResult{
			Language:     "none",
			Probability:  nil,
			Method:       models.MethodAutodetect,
			GateDecision: models.DecisionMusicOnly,
			UseVad:       false,
			MusicOnly:    true,
			Meta:         g.buildMeta(midZone, 0, 0, tokenCount, false, true),
			Transcript:   transcript,
		}, nil
	}

	if containsAllowed(t.AllowedLangs, detectedLang) {
		if prob >= t.MidUpper {
			dominant := enRatio
			if frRatio > dominant {
				dominant = frRatio
			}
			if tokenCount >= t.MinTokensSpeech && dominant >= t.MinStopwordSpeech {
				return models.GateResult{
					Language:     detectedLang,
					Probability:  floatPtr(prob),
					Method:       models.MethodAutodetect,
					GateDecision: models.DecisionHighConf,
					UseVad:       false,
					MusicOnly:    false,
					Meta:         g.buildMeta(false, enRatio, frRatio, tokenCount, false, false),
					Transcript:   transcript,
				}, nil
			}
		}

		if prob >= t.MidLower && (detectedLang == "en" || detectedLang == "fr") {
			midZone := prob < t.MidUpper
			if detectedLang == "en" &&
				tokenCount >= t.MinTokensHeuristic &&
				enRatio >= t.MinStopwordEn &&
				enRatio > frRatio+t.StopwordMargin {
				return models.GateResult{
					Language:     detectedLang,
					Probability:  floatPtr(prob),
					Method:       models.MethodAutodetect,
					GateDecision: models.DecisionMidZoneEn,
					UseVad:       false,
					MusicOnly:    false,
					Meta:         g.buildMeta(midZone, enRatio, frRatio, tokenCount, false, false),
					Transcript:   transcript,
				}, nil
			}
			if detectedLang == "fr" &&
				tokenCount >= t.MinTokensHeuristic &&
				frRatio >= t.MinStopwordFr &&
				frRatio > enRatio+t.StopwordMargin {
				return models.GateResult{
					Language:     detectedLang,
					Probability:  floatPtr(prob),
					Method:       models.MethodAutodetect,
					GateDecision: models.DecisionMidZoneFr,
					UseVad:       false,
					MusicOnly:    false,
					Meta:         g.buildMeta(midZone, enRatio, frRatio, tokenCount, false, false),
					Transcript:   transcript,
				}, nil
			}
		}
	}

	// VAD retry
	resVad, err := g.Engine.Transcribe(ctx, probeAudio, asr.Options{VadFilter: true, BeamSize: 1})
	if err != nil {
		return models.GateResult{}, apperrors.ErrGateTransient
	}

	transcriptVad := transcriptOf(resVad.Segments)
	detectedLangVad := resVad.DetectedLanguage
	probVad := safeProb(resVad.LanguageProbability)

	vadMidZone := probVad >= t.MidLower && probVad < t.MidUpper

	if isMusicOnlyTranscript(transcriptVad) {
		return models.GateResult{
			Language:     "none",
			Probability:  nil,
			Method:       models.MethodAutodetectVad,
			GateDecision: models.DecisionMusicOnly,
			UseVad:       true,
			MusicOnly:    true,
			Meta:         g.buildMeta(vadMidZone, 0, 0, len(tokenize(transcriptVad)), true, true),
			Transcript:   transcriptVad,
		}, nil
	}

	if containsAllowed(t.AllowedLangs, detectedLangVad) && probVad >= t.LangDetectMinProb {
		return models.GateResult{
			Language:     detectedLangVad,
			Probability:  floatPtr(probVad),
			Method:       models.MethodAutodetectVad,
			GateDecision: models.DecisionVadRetry,
			UseVad:       true,
			MusicOnly:    false,
			Meta:         g.buildMeta(vadMidZone, enRatio, frRatio, tokenCount, true, false),
			Transcript:   transcriptVad,
		}, nil
	}

	// Terminal disposition
	if t.EnfrStrictReject {
		return models.GateResult{}, &strictRejectError{language: detectedLang, probability: prob}
	}

	chosenLang, err := g.scoreFallback(ctx, probeAudio)
	if err != nil {
		return models.GateResult{}, apperrors.ErrGateTransient
	}

	return models.GateResult{
		Language:     chosenLang,
		Probability:  nil,
		Method:       models.MethodFallback,
		GateDecision: models.DecisionFallback,
		UseVad:       true,
		MusicOnly:    false,
		Meta:         g.buildMeta(vadMidZone, enRatio, frRatio, tokenCount, true, false),
		Transcript:   transcript,
	}, nil
}

// scoreFallback ports pick_en_or_fr_by_scoring: run two cheap transcriptions
// forced to en/fr and pick the higher mean avg_logprob, defaulting to -99
// when no segments come back.
func (g *Gate) scoreFallback(ctx context.Context, probeAudio []float32) (string, error) {
	best := ""
	bestScore := -1.0e18
	for _, lang := range []string{"en", "fr"} {
		res, err := g.Engine.Transcribe(ctx, probeAudio, asr.Options{
			ForceLanguage: lang,
			BeamSize:      1,
			BestOf:        1,
			VadFilter:     true,
		})
		if err != nil {
			return "", err
		}
		score := meanLogProb(res.Segments)
		if best == "" || score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best, nil
}

func meanLogProb(segments []asr.Segment) float64 {
	if len(segments) == 0 {
		return -99.0
	}
	sum := 0.0
	n := 0
	for _, s := range segments {
		sum += s.AvgLogProb
		n++
	}
	if n == 0 {
		return -99.0
	}
	return sum / float64(n)
}

type strictRejectError struct {
	language    string
	probability float64
}

func (e *strictRejectError) Error() string {
	return "strict gate rejected language " + e.language
}
func (e *strictRejectError) Unwrap() error { return apperrors.ErrStrictGateReject }

// StrictRejectDetails extracts the language/probability pair from a strict
// gate rejection for the HTTP handler to surface in its 400 body.
func StrictRejectDetails(err error) (language string, probability float64, ok bool) {
	sre, ok := err.(*strictRejectError)
	if !ok {
		return "", 0, false
	}
	return sre.language, sre.probability, true
}
