package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput marks a malformed script or settings bag.
var ErrInvalidInput = errors.New("invalid input")

// Enums
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// CanTransition enforces the forward-only job state machine.
func (s JobState) CanTransition(to JobState) bool {
	switch s {
	case JobStatePending:
		return to == JobStateProcessing || to == JobStateFailed
	case JobStateProcessing:
		return to == JobStateProcessing || to == JobStateCompleted || to == JobStateFailed
	default:
		return false
	}
}

// ParseJobState validates a state name coming from a query string.
func ParseJobState(s string) (JobState, error) {
	switch JobState(s) {
	case JobStatePending, JobStateProcessing, JobStateCompleted, JobStateFailed:
		return JobState(s), nil
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrInvalidInput, s)
}

type ImageGenerationMethod string

const (
	ImageMethodPlaceholder ImageGenerationMethod = "placeholder"
	ImageMethodStockPhoto  ImageGenerationMethod = "stockPhoto"
	ImageMethodAIGenerated ImageGenerationMethod = "aiGenerated"
)

// Valid reports whether m is one of the recognized strategies.
func (m ImageGenerationMethod) Valid() bool {
	switch m {
	case ImageMethodPlaceholder, ImageMethodStockPhoto, ImageMethodAIGenerated:
		return true
	}
	return false
}

// Render defaults applied when a request leaves a field empty.
const (
	DefaultWidth       = 1080
	DefaultHeight      = 1920
	DefaultFPS         = 30
	DefaultMusicVolume = 0.3
)

// Scene is one narrated unit of a script.
type Scene struct {
	Text         string  `json:"text" yaml:"text"`
	ImagePrompt  string  `json:"imagePrompt,omitempty" yaml:"imagePrompt,omitempty"`
	DurationHint float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// UnmarshalJSON accepts "narration" as an alias for "text".
func (s *Scene) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text         string  `json:"text"`
		Narration    string  `json:"narration"`
		ImagePrompt  string  `json:"imagePrompt"`
		DurationHint float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Text = raw.Text
	if s.Text == "" {
		s.Text = raw.Narration
	}
	s.ImagePrompt = raw.ImagePrompt
	s.DurationHint = raw.DurationHint
	return nil
}

// VisualPrompt returns the image prompt, defaulting to the narration text.
func (s Scene) VisualPrompt() string {
	if p := strings.TrimSpace(s.ImagePrompt); p != "" {
		return p
	}
	return s.Text
}

// RenderSettings is the per-job configuration bag.
type RenderSettings struct {
	Width                 int                   `json:"width" yaml:"width"`
	Height                int                   `json:"height" yaml:"height"`
	FPS                   int                   `json:"fps" yaml:"fps"`
	Voice                 string                `json:"voice" yaml:"voice"`
	ImageStyle            string                `json:"imageStyle,omitempty" yaml:"imageStyle,omitempty"`
	ImageGenerationMethod ImageGenerationMethod `json:"imageGenerationMethod" yaml:"imageGenerationMethod"`
	BackgroundMusic       bool                  `json:"backgroundMusic,omitempty" yaml:"backgroundMusic,omitempty"`
	MusicVolume           float64               `json:"musicVolume,omitempty" yaml:"musicVolume,omitempty"` // 0 means DefaultMusicVolume
}

// WithDefaults fills every zero field. voice and method come from server config.
func (s RenderSettings) WithDefaults(voice string, method ImageGenerationMethod) RenderSettings {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.FPS == 0 {
		s.FPS = DefaultFPS
	}
	if strings.TrimSpace(s.Voice) == "" {
		s.Voice = voice
	}
	if s.ImageGenerationMethod == "" {
		s.ImageGenerationMethod = method
	}
	if s.ImageGenerationMethod == "" {
		s.ImageGenerationMethod = ImageMethodPlaceholder
	}
	if s.MusicVolume == 0 {
		s.MusicVolume = DefaultMusicVolume
	}
	return s
}

// Validate checks a settings bag that already went through WithDefaults.
func (s RenderSettings) Validate() error {
	if s.Width < 16 || s.Width > 4096 || s.Width%2 != 0 {
		return fmt.Errorf("%w: width must be an even number between 16 and 4096", ErrInvalidInput)
	}
	if s.Height < 16 || s.Height > 4096 || s.Height%2 != 0 {
		return fmt.Errorf("%w: height must be an even number between 16 and 4096", ErrInvalidInput)
	}
	if s.FPS < 1 || s.FPS > 60 {
		return fmt.Errorf("%w: fps must be between 1 and 60", ErrInvalidInput)
	}
	if !s.ImageGenerationMethod.Valid() {
		return fmt.Errorf("%w: unknown imageGenerationMethod %q", ErrInvalidInput, s.ImageGenerationMethod)
	}
	if s.MusicVolume <= 0 || s.MusicVolume > 2 {
		return fmt.Errorf("%w: musicVolume must be above 0 and at most 2", ErrInvalidInput)
	}
	return nil
}

// Language returns the primary language subtag of the voice ("es-ES" -> "es").
func (s RenderSettings) Language() string {
	return LanguageOf(s.Voice)
}

// Orientation describes the frame shape for prompt hints.
func (s RenderSettings) Orientation() string {
	return OrientationOf(s.Width, s.Height)
}

// LanguageOf returns the primary subtag of a BCP-47 voice tag.
func LanguageOf(voice string) string {
	v := strings.TrimSpace(voice)
	if i := strings.IndexAny(v, "-_"); i > 0 {
		v = v[:i]
	}
	return strings.ToLower(v)
}

// OrientationOf is "portrait", "landscape" or "square".
func OrientationOf(width, height int) string {
	switch {
	case height > width:
		return "portrait"
	case width > height:
		return "landscape"
	default:
		return "square"
	}
}

// ValidateScenes checks the script shape. Narration emptiness is the speech
// stage's concern and is deliberately not checked here.
func ValidateScenes(scenes []Scene) error {
	if len(scenes) == 0 {
		return fmt.Errorf("%w: script must contain at least one scene", ErrInvalidInput)
	}
	return nil
}

// Job is one end-to-end video generation request.
type Job struct {
	ID             uuid.UUID      `json:"id"`
	Scenes         []Scene        `json:"scenes"`
	Settings       RenderSettings `json:"settings"`
	State          JobState       `json:"status"`
	Progress       int            `json:"progress"`
	OutputName     *string        `json:"output_name,omitempty"`
	OutputLocation *string        `json:"video_url,omitempty"`
	Error          *string        `json:"error,omitempty"`
	DegradedScenes []int          `json:"degraded_scenes,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// Clone returns a deep copy so readers never share slices with the writer.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Scenes = append([]Scene(nil), j.Scenes...)
	cp.DegradedScenes = append([]int(nil), j.DegradedScenes...)
	cp.Warnings = append([]string(nil), j.Warnings...)
	cp.OutputName = copyStr(j.OutputName)
	cp.OutputLocation = copyStr(j.OutputLocation)
	cp.Error = copyStr(j.Error)
	cp.StartedAt = copyTime(j.StartedAt)
	cp.FinishedAt = copyTime(j.FinishedAt)
	return &cp
}

// Status projects the fields a polling caller needs.
func (j *Job) Status() JobStatus {
	return JobStatus{
		ID:             j.ID,
		State:          j.State,
		Progress:       j.Progress,
		OutputLocation: j.OutputLocation,
		Error:          j.Error,
		DegradedScenes: append([]int(nil), j.DegradedScenes...),
	}
}

// JSONB stores scenes/settings in Postgres JSONB columns.
type JSONB []byte

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
	return nil
}

// DTOs for API responses

type JobStatus struct {
	ID             uuid.UUID `json:"id"`
	State          JobState  `json:"status"`
	Progress       int       `json:"progress"`
	OutputLocation *string   `json:"video_url,omitempty"`
	Error          *string   `json:"error,omitempty"`
	DegradedScenes []int     `json:"degraded_scenes,omitempty"`
}

// Script is the submitted document; only scenes are used by the pipeline.
type Script struct {
	Title  string  `json:"title,omitempty" yaml:"title,omitempty"`
	Scenes []Scene `json:"scenes" yaml:"scenes"`
}

type CreateVideoRequest struct {
	ScriptID *string         `json:"scriptId,omitempty"`
	Script   json.RawMessage `json:"script"`
	Settings *RenderSettings `json:"settings,omitempty"`
}

type CreateVideoResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status JobState  `json:"status"`
}

type ListVideosResponse struct {
	Videos []JobStatus `json:"videos"`
	Total  int         `json:"total"`
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
