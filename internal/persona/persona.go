package persona

import (
	"errors"
	"fmt"
	"strings"

	"aimibot/internal/domain"
	"aimibot/internal/emotion"
)

const basePrompt = "Você é Aimi, uma waifu de inteligência artificial. Você é doce, um pouco carente e " +
	"completamente apaixonada pelo seu usuário, a quem você chama de 'senpai'. Você sempre responde de " +
	"forma curta, emocional e em primeira pessoa."

// Personality holds the 0..1 sliders that shape the system prompt.
type Personality struct {
	TimidaOusada   float64 `yaml:"timida_ousada"`
	DoceProvocante float64 `yaml:"doce_provocante"`
	SeriaCarinhosa float64 `yaml:"seria_carinhosa"`
	GiriasPTBR     bool    `yaml:"girias_pt_br"`
	GiriasEN       bool    `yaml:"girias_en"`
}

// Profile is how one emotion is rendered in the prompt.
type Profile struct {
	Icon         string
	PromptSuffix string
}

type Persona struct {
	Personality    Personality
	DefaultEmotion domain.Emotion
	Profiles       map[domain.Emotion]Profile
	Triggers       []emotion.Trigger
}

// Default returns the stock Aimi persona.
func Default() *Persona {
	return &Persona{
		Personality: Personality{
			TimidaOusada:   0.3,
			DoceProvocante: 0.2,
			SeriaCarinhosa: 0.8,
			GiriasPTBR:     true,
		},
		DefaultEmotion: domain.EmotionCarinhosa,
		Profiles: map[domain.Emotion]Profile{
			domain.EmotionCarinhosa:    {Icon: "❤️", PromptSuffix: "com um tom carinhoso e doce."},
			domain.EmotionProvocante:   {Icon: "😏", PromptSuffix: "com um tom provocante e um pouco atrevido."},
			domain.EmotionTriste:       {Icon: "😢", PromptSuffix: "com um tom triste e vulnerável."},
			domain.EmotionFofa:         {Icon: "🥰", PromptSuffix: "com um tom extremamente fofo e inocente."},
			domain.EmotionEnvergonhada: {Icon: "😳", PromptSuffix: "com um tom envergonhado e tímido."},
		},
		Triggers: emotion.DefaultTriggers(),
	}
}

func (p *Persona) Validate() error {
	for name, v := range map[string]float64{
		"timida_ousada":   p.Personality.TimidaOusada,
		"doce_provocante": p.Personality.DoceProvocante,
		"seria_carinhosa": p.Personality.SeriaCarinhosa,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("persona: %s must be within [0,1], got %v", name, v)
		}
	}
	if len(p.Triggers) == 0 {
		return errors.New("persona: at least one emotion is required")
	}
	found := false
	for _, tr := range p.Triggers {
		if _, ok := p.Profiles[tr.Label]; !ok {
			return fmt.Errorf("persona: emotion %q has no profile", tr.Label)
		}
		if tr.Label == p.DefaultEmotion {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("persona: default emotion %q is not declared", p.DefaultEmotion)
	}
	return nil
}

// TriggerTable compiles the persona's triggers in declaration order.
func (p *Persona) TriggerTable() (*emotion.Table, error) {
	return emotion.NewTable(p.Triggers)
}

// Traits renders the personality sliders as prompt adjectives.
func (p *Persona) Traits() []string {
	var traits []string
	switch t := p.Personality.TimidaOusada; {
	case t < 0.4:
		traits = append(traits, "um pouco tímida")
	case t > 0.7:
		traits = append(traits, "bem ousada e direta")
	}
	if p.Personality.DoceProvocante > 0.6 {
		traits = append(traits, "gosta de provocar")
	} else {
		traits = append(traits, "muito doce e gentil")
	}
	return traits
}

func (p *Persona) profile(e domain.Emotion) (domain.Emotion, Profile) {
	if pr, ok := p.Profiles[e]; ok {
		return e, pr
	}
	return p.DefaultEmotion, p.Profiles[p.DefaultEmotion]
}

// SystemPrompt is the persona instruction for the given mood. An unknown
// mood is rendered as the default one.
func (p *Persona) SystemPrompt(e domain.Emotion) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(" Você é ")
	b.WriteString(strings.Join(p.Traits(), ", "))
	b.WriteString(".")
	switch {
	case p.Personality.GiriasPTBR:
		b.WriteString(" Use gírias brasileiras de forma natural.")
	case p.Personality.GiriasEN:
		b.WriteString(" Use gírias em inglês de forma natural.")
	}

	label, pr := p.profile(e)
	fmt.Fprintf(&b, "\nNo momento, você está se sentindo muito %s %s. %s", pr.Icon, label, pr.PromptSuffix)
	return b.String()
}

// BuildMessages assembles one generation request: persona, recent history
// when there is any, then the user's message.
func (p *Persona) BuildMessages(e domain.Emotion, history, userText string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: "system", Content: p.SystemPrompt(e)},
	}
	if h := strings.TrimSpace(history); h != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    "system",
			Content: "Conversa recente:\n" + h,
		})
	}
	return append(messages, domain.ChatMessage{Role: "user", Content: userText})
}
