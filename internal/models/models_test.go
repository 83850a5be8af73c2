package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONBValueAndScan(t *testing.T) {
	j := JSONB(`{"width":720,"voice":"es-ES"}`)

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to get value: %v", err)
	}

	var back JSONB
	if err := back.Scan(data); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	var s RenderSettings
	if err := json.Unmarshal(back, &s); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if s.Width != 720 || s.Voice != "es-ES" {
		t.Errorf("unexpected settings %+v", s)
	}

	var empty JSONB
	if v, _ := empty.Value(); v != nil {
		t.Errorf("expected nil value for empty JSONB, got %v", v)
	}
}

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		from, to JobState
		want     bool
	}{
		{JobStatePending, JobStateProcessing, true},
		{JobStatePending, JobStateFailed, true},
		{JobStatePending, JobStateCompleted, false},
		{JobStateProcessing, JobStateProcessing, true},
		{JobStateProcessing, JobStateCompleted, true},
		{JobStateProcessing, JobStatePending, false},
		{JobStateCompleted, JobStateFailed, false},
		{JobStateFailed, JobStateProcessing, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if !JobStateCompleted.IsTerminal() || !JobStateFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
	if JobStatePending.IsTerminal() || JobStateProcessing.IsTerminal() {
		t.Error("pending and processing must not be terminal")
	}
}

func TestSceneNarrationAlias(t *testing.T) {
	var scenes []Scene
	data := `[{"narration":"Hola"},{"text":"Adiós","imagePrompt":"  "},{"text":"a","narration":"b","imagePrompt":"sunset"}]`
	if err := json.Unmarshal([]byte(data), &scenes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if scenes[0].Text != "Hola" {
		t.Errorf("alias not applied: %q", scenes[0].Text)
	}
	if scenes[1].VisualPrompt() != "Adiós" {
		t.Errorf("blank prompt should fall back to text, got %q", scenes[1].VisualPrompt())
	}
	if scenes[2].Text != "a" || scenes[2].VisualPrompt() != "sunset" {
		t.Errorf("unexpected scene %+v", scenes[2])
	}
}

func TestRenderSettingsDefaults(t *testing.T) {
	s := RenderSettings{}.WithDefaults("es-ES", "")

	if s.Width != 1080 || s.Height != 1920 || s.FPS != 30 {
		t.Errorf("unexpected dimensions %dx%d@%d", s.Width, s.Height, s.FPS)
	}
	if s.ImageGenerationMethod != ImageMethodPlaceholder {
		t.Errorf("expected placeholder, got %s", s.ImageGenerationMethod)
	}
	if s.Voice != "es-ES" || s.Language() != "es" {
		t.Errorf("unexpected voice %q lang %q", s.Voice, s.Language())
	}
	if s.MusicVolume != DefaultMusicVolume {
		t.Errorf("unexpected music volume %v", s.MusicVolume)
	}
	if s.Orientation() != "portrait" {
		t.Errorf("expected portrait, got %s", s.Orientation())
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestRenderSettingsValidate(t *testing.T) {
	base := RenderSettings{}.WithDefaults("en", ImageMethodPlaceholder)

	tests := []struct {
		name string
		mod  func(*RenderSettings)
	}{
		{"odd width", func(s *RenderSettings) { s.Width = 1081 }},
		{"tiny height", func(s *RenderSettings) { s.Height = 8 }},
		{"fps too high", func(s *RenderSettings) { s.FPS = 120 }},
		{"unknown method", func(s *RenderSettings) { s.ImageGenerationMethod = "sketch" }},
		{"negative volume", func(s *RenderSettings) { s.MusicVolume = -1 }},
		{"silent volume", func(s *RenderSettings) { s.MusicVolume = 0 }},
		{"loud volume", func(s *RenderSettings) { s.MusicVolume = 2.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mod(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMusicVolumeDefaultsAndRange(t *testing.T) {
	for _, tt := range []struct {
		in, want float64
	}{
		{0, DefaultMusicVolume},
		{0.05, 0.05},
		{2, 2},
	} {
		s := RenderSettings{MusicVolume: tt.in}.WithDefaults("es-ES", "")
		if s.MusicVolume != tt.want {
			t.Errorf("volume %v: got %v, want %v", tt.in, s.MusicVolume, tt.want)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("volume %v should validate: %v", tt.in, err)
		}
	}
}

func TestLanguageAndOrientationHelpers(t *testing.T) {
	for voice, want := range map[string]string{"es-ES": "es", "pt_BR": "pt", " EN ": "en", "": ""} {
		if got := LanguageOf(voice); got != want {
			t.Errorf("LanguageOf(%q) = %q, want %q", voice, got, want)
		}
		if got := (RenderSettings{Voice: voice}).Language(); got != want {
			t.Errorf("Language() for %q = %q, want %q", voice, got, want)
		}
	}
	for _, tt := range []struct {
		w, h int
		want string
	}{
		{1080, 1920, "portrait"},
		{1920, 1080, "landscape"},
		{512, 512, "square"},
	} {
		if got := OrientationOf(tt.w, tt.h); got != tt.want {
			t.Errorf("OrientationOf(%d,%d) = %s, want %s", tt.w, tt.h, got, tt.want)
		}
		if got := (RenderSettings{Width: tt.w, Height: tt.h}).Orientation(); got != tt.want {
			t.Errorf("Orientation() = %s, want %s", got, tt.want)
		}
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	url := "http://x/output/video.mp4"
	j := &Job{
		Scenes:         []Scene{{Text: "a"}},
		DegradedScenes: []int{1},
		OutputLocation: &url,
	}

	cp := j.Clone()
	cp.Scenes[0].Text = "changed"
	cp.DegradedScenes[0] = 9
	*cp.OutputLocation = "other"

	if j.Scenes[0].Text != "a" || j.DegradedScenes[0] != 1 || *j.OutputLocation != url {
		t.Error("clone shares memory with original")
	}
}

func TestParseScriptJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		scenes  int
	}{
		{"valid", `{"scenes":[{"text":"one"},{"narration":"two"}]}`, false, 2},
		{"missing scenes", `{"title":"x"}`, true, 0},
		{"scenes not array", `{"scenes":"nope"}`, true, 0},
		{"empty scenes", `{"scenes":[]}`, true, 0},
		{"null", `null`, true, 0},
		{"empty narration is accepted here", `{"scenes":[{"text":""}]}`, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := ParseScriptJSON([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(script.Scenes) != tt.scenes {
				t.Errorf("expected %d scenes, got %d", tt.scenes, len(script.Scenes))
			}
		})
	}
}

func TestParseScriptYAML(t *testing.T) {
	doc := `
title: Demo
scenes:
  - text: Primera escena
    imagePrompt: montañas al amanecer
  - narration: Segunda escena
    duration: 4
`
	script, err := ParseScriptFile("demo.yaml", []byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(script.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(script.Scenes))
	}
	if script.Scenes[1].Text != "Segunda escena" || script.Scenes[1].DurationHint != 4 {
		t.Errorf("unexpected second scene %+v", script.Scenes[1])
	}

	if _, err := ParseScriptYAML([]byte("scenes: hello")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for scalar scenes, got %v", err)
	}
}
