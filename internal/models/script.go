package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// UnmarshalYAML mirrors UnmarshalJSON for script files.
func (s *Scene) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Text         string  `yaml:"text"`
		Narration    string  `yaml:"narration"`
		ImagePrompt  string  `yaml:"imagePrompt"`
		DurationHint float64 `yaml:"duration"`
	}
	if err := unmarshal(&raw); err != nil {
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

// ParseScriptJSON decodes a script document. A missing or non-array
// "scenes" field is reported as ErrInvalidInput.
func ParseScriptJSON(data []byte) (*Script, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: script is required", ErrInvalidInput)
	}

	var envelope struct {
		Title  string          `json:"title"`
		Scenes json.RawMessage `json:"scenes"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: script must be an object: %v", ErrInvalidInput, err)
	}

	raw := bytes.TrimSpace(envelope.Scenes)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: script.scenes is required", ErrInvalidInput)
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: script.scenes must be an array", ErrInvalidInput)
	}

	script := &Script{Title: envelope.Title}
	if err := json.Unmarshal(raw, &script.Scenes); err != nil {
		return nil, fmt.Errorf("%w: invalid scene: %v", ErrInvalidInput, err)
	}
	if err := ValidateScenes(script.Scenes); err != nil {
		return nil, err
	}
	return script, nil
}

// ParseScriptYAML decodes a YAML script file.
func ParseScriptYAML(data []byte) (*Script, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid yaml: %v", ErrInvalidInput, err)
	}
	scenes, ok := doc["scenes"]
	if !ok || scenes == nil {
		return nil, fmt.Errorf("%w: scenes is required", ErrInvalidInput)
	}
	if _, ok := scenes.([]interface{}); !ok {
		return nil, fmt.Errorf("%w: scenes must be a list", ErrInvalidInput)
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("%w: invalid scene: %v", ErrInvalidInput, err)
	}
	if err := ValidateScenes(script.Scenes); err != nil {
		return nil, err
	}
	return &script, nil
}

// ParseScriptFile picks the decoder from the file extension.
func ParseScriptFile(name string, data []byte) (*Script, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return ParseScriptYAML(data)
	default:
		return ParseScriptJSON(data)
	}
}
