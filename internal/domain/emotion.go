package domain

// Emotion is the persona's mood toward one user.
type Emotion string

const (
	EmotionProvocante   Emotion = "provocante"
	EmotionCarinhosa    Emotion = "carinhosa"
	EmotionFofa         Emotion = "fofa"
	EmotionEnvergonhada Emotion = "envergonhada"
	EmotionTriste       Emotion = "triste"
)

func (e Emotion) String() string {
	return string(e)
}
