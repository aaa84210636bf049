package persona

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"aimibot/internal/domain"
	"aimibot/internal/emotion"
)

type fileEmotion struct {
	Label        string   `yaml:"label"`
	Icon         string   `yaml:"icon"`
	PromptSuffix string   `yaml:"prompt_suffix"`
	Weight       int      `yaml:"weight"`
	Keywords     []string `yaml:"keywords"`
	Emojis       []string `yaml:"emojis"`
}

type fileFormat struct {
	Personality    *Personality  `yaml:"personality"`
	DefaultEmotion string        `yaml:"default_emotion"`
	Emotions       []fileEmotion `yaml:"emotions"`
}

// LoadFile reads a persona YAML file on top of Default. Sections that are
// absent keep their defaults; an emotions list replaces the whole table.
func LoadFile(path string) (*Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("persona: %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a persona document. Unknown keys are rejected.
func Parse(raw []byte) (*Persona, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("persona: decode: %w", err)
	}

	p := Default()
	if f.Personality != nil {
		p.Personality = *f.Personality
	}
	if len(f.Emotions) > 0 {
		p.Profiles = make(map[domain.Emotion]Profile, len(f.Emotions))
		p.Triggers = make([]emotion.Trigger, 0, len(f.Emotions))
		for _, e := range f.Emotions {
			label := domain.Emotion(e.Label)
			if _, dup := p.Profiles[label]; dup {
				return nil, fmt.Errorf("persona: duplicate emotion %q", e.Label)
			}
			p.Profiles[label] = Profile{Icon: e.Icon, PromptSuffix: e.PromptSuffix}
			p.Triggers = append(p.Triggers, emotion.Trigger{
				Label:    label,
				Keywords: e.Keywords,
				Emojis:   e.Emojis,
				Weight:   e.Weight,
			})
		}
	}
	if f.DefaultEmotion != "" {
		p.DefaultEmotion = domain.Emotion(f.DefaultEmotion)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
