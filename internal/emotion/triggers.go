package emotion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"aimibot/internal/domain"
)

// Trigger maps one emotion label to the keyword patterns and emoji literals
// that raise its score. Each match adds Weight.
type Trigger struct {
	Label    domain.Emotion
	Keywords []string // regular expressions, matched against lower-cased text
	Emojis   []string
	Weight   int
}

// DefaultTriggers returns the reference trigger set. Order matters: on equal
// scores the label declared first wins.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Label:    domain.EmotionProvocante,
			Keywords: []string{`gostosa`, `safada`, `danada`, `atrevida`},
			Emojis:   []string{"😏", "😈", "🔥"},
			Weight:   2,
		},
		{
			Label:    domain.EmotionCarinhosa,
			Keywords: []string{`amo você`, `te amo`, `gosto de você`, `minha linda`, `perfeita`, `abraço`, `beijo`},
			Emojis:   []string{"❤️", "🥰", "😍", "😘"},
			Weight:   1,
		},
		{
			Label:    domain.EmotionFofa,
			Keywords: []string{`fofa`, `own`, `que amor`, `bonitinha`, `querida`},
			Emojis:   []string{"😊", "✨", "💕"},
			Weight:   1,
		},
		{
			Label:    domain.EmotionEnvergonhada,
			Keywords: []string{`você corou`, `tímida`, `vergonha`},
			Emojis:   []string{"😳", "👉👈"},
			Weight:   2,
		},
		{
			Label:    domain.EmotionTriste,
			Keywords: []string{`chata`, `idiota`, `odeio você`, `estou triste`, `sozinho`},
			Emojis:   []string{"😢", "😭", "😞", "💔"},
			Weight:   3,
		},
	}
}

type compiledTrigger struct {
	label    domain.Emotion
	keywords []*regexp.Regexp
	emojis   []string
	weight   int
}

// Table is an immutable, ordered, compiled trigger set.
type Table struct {
	entries []compiledTrigger
}

// NewTable compiles triggers in the given order.
func NewTable(triggers []Trigger) (*Table, error) {
	if len(triggers) == 0 {
		return nil, errors.New("emotion: trigger table must not be empty")
	}
	seen := make(map[domain.Emotion]struct{}, len(triggers))
	entries := make([]compiledTrigger, 0, len(triggers))
	for _, tr := range triggers {
		label := domain.Emotion(strings.TrimSpace(string(tr.Label)))
		if label == "" {
			return nil, errors.New("emotion: trigger label must not be empty")
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("emotion: duplicate trigger label %q", label)
		}
		seen[label] = struct{}{}
		if tr.Weight <= 0 {
			return nil, fmt.Errorf("emotion: trigger %q weight must be positive", label)
		}

		entry := compiledTrigger{label: label, weight: tr.Weight}
		for _, kw := range tr.Keywords {
			re, err := regexp.Compile(kw)
			if err != nil {
				return nil, fmt.Errorf("emotion: trigger %q keyword %q: %w", label, kw, err)
			}
			entry.keywords = append(entry.keywords, re)
		}
		for _, e := range tr.Emojis {
			if e != "" {
				entry.emojis = append(entry.emojis, e)
			}
		}
		entries = append(entries, entry)
	}
	return &Table{entries: entries}, nil
}

// Labels returns the labels in declaration order.
func (t *Table) Labels() []domain.Emotion {
	out := make([]domain.Emotion, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.label
	}
	return out
}

// Has reports whether label belongs to the table.
func (t *Table) Has(label domain.Emotion) bool {
	for _, e := range t.entries {
		if e.label == label {
			return true
		}
	}
	return false
}

// Detect scores text against every label and returns the strictly highest
// scoring one. A zero score means nothing matched and the label is empty.
func (t *Table) Detect(text string) (domain.Emotion, int) {
	normalized := strings.ToLower(text)

	var best domain.Emotion
	bestScore := 0
	for _, e := range t.entries {
		score := 0
		for _, re := range e.keywords {
			if re.MatchString(normalized) {
				score += e.weight
			}
		}
		for _, emoji := range e.emojis {
			if strings.Contains(normalized, emoji) {
				score += e.weight
			}
		}
		if score > bestScore {
			bestScore = score
			best = e.label
		}
	}
	return best, bestScore
}
