package models

import (
	"time"
)

// JobStatus is the finite set of states a Job may occupy.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Job is the persistent record for one submitted audio file. Its id carries
// the owning node as a prefix (<owner_node>-<opaque_suffix>); only that node
// is ever allowed to mutate the row.
type Job struct {
	ID               string    `json:"id" db:"id" gorm:"primaryKey;type:varchar(128)"`
	Status           JobStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:'queued';index"`
	CreatedAt        time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
	Attempts         int       `json:"attempts" db:"attempts" gorm:"not null;default:0"`
	Progress         int       `json:"progress" db:"progress" gorm:"not null;default:0"`
	InputPath        string    `json:"input_path" db:"input_path" gorm:"type:text;not null"`
	OriginalFilename string    `json:"original_filename" db:"original_filename" gorm:"type:text;not null"`
	TargetLang       *string   `json:"target_lang,omitempty" db:"target_lang" gorm:"type:varchar(8)"`
	ResultJSON       *string   `json:"result_json,omitempty" db:"result_json" gorm:"type:text"`
	Error            *string   `json:"error,omitempty" db:"error" gorm:"type:text"`
}

// TableName pins the GORM table name regardless of pluralization rules.
func (Job) TableName() string {
	return "jobs"
}

// GateMeta captures the thresholds and transcript statistics in force when a
// gate decision was made, so §4.3's G5 property can always be verified from
// the stored result.
type GateMeta struct {
	MidZone           bool    `json:"mid_zone"`
	EnRatio           float64 `json:"en_ratio"`
	FrRatio           float64 `json:"fr_ratio"`
	TokenCount        int     `json:"token_count"`
	VadUsed           bool    `json:"vad_used"`
	MusicOnly         bool    `json:"music_only"`
	MidLower          float64 `json:"mid_lower"`
	MidUpper          float64 `json:"mid_upper"`
	MinStopwordEn     float64 `json:"min_stopword_en"`
	MinStopwordFr     float64 `json:"min_stopword_fr"`
	StopwordMargin    float64 `json:"stopword_margin"`
	MinTokens         int     `json:"min_tokens_heuristic"`
	MinTokensSpeech   int     `json:"min_tokens_speech"`
	MinStopwordSpeech float64 `json:"min_stopword_speech"`
	LangDetectMinProb float64 `json:"lang_detect_min_prob"`
}

// GateDecision is the tagged variant spec.md §9 asks for in place of the
// original's bare strings; String() preserves the exact wire labels.
type GateDecision int

const (
	DecisionUnknown GateDecision = iota
	DecisionHighConf
	DecisionMidZoneEn
	DecisionMidZoneFr
	DecisionVadRetry
	DecisionMusicOnly
	DecisionFallback
)

func (d GateDecision) String() string {
	switch d {
	case DecisionHighConf:
		return "accepted_high_conf"
	case DecisionMidZoneEn:
		return "accepted_mid_zone_en"
	case DecisionMidZoneFr:
		return "accepted_mid_zone_fr"
	case DecisionVadRetry:
		return "vad_retry"
	case DecisionMusicOnly:
		return "NO_SPEECH_MUSIC_ONLY"
	case DecisionFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// DetectionMethod names how the final language/probability pair was obtained.
type DetectionMethod string

const (
	MethodAutodetect    DetectionMethod = "autodetect"
	MethodAutodetectVad DetectionMethod = "autodetect-vad"
	MethodFallback      DetectionMethod = "fallback"
)

// GateResult is the transient, per-job output of the language gate.
type GateResult struct {
	Language     string          `json:"language"`
	Probability  *float64        `json:"probability"`
	Method       DetectionMethod `json:"method"`
	GateDecision GateDecision    `json:"-"`
	UseVad       bool            `json:"use_vad"`
	MusicOnly    bool            `json:"music_only"`
	Meta         GateMeta        `json:"gate_meta"`
	Transcript   string          `json:"-"`
}

// MarshalDecision exposes the stable string label alongside the tagged
// variant, matching the wire contract in spec.md §4.3/§9.
func (g GateResult) MarshalDecision() string {
	return g.GateDecision.String()
}

// PipelineResult is the JSON payload stored in Job.ResultJSON on success.
type PipelineResult struct {
	Language        string         `json:"language"`
	Probability     *float64       `json:"probability"`
	Text            string         `json:"text"`
	GateDecision    string         `json:"gate_decision"`
	GateMeta        GateMeta       `json:"gate_meta"`
	MusicOnly       bool           `json:"music_only"`
	DetectionMethod string         `json:"detection_method"`
	ProcessingMs    int64          `json:"processing_ms"`
	Raw             map[string]any `json:"raw"`
}

// NodeHealth is the in-memory, per-peer health view maintained by the
// cluster health loop.
type NodeHealth struct {
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"last_seen"`
}

// JobFilter narrows JobStore.List results.
type JobFilter struct {
	Status *JobStatus
	Since  *time.Time
	Limit  int
}
