package voice

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"aimibot/internal/domain"
)

const (
	keyPrefix   = "aimi:voice:"
	DefaultTTL  = 7 * 24 * time.Hour
	DefaultLang = "pt-br"
	baseRate    = 44100
)

// LanguageParams shape the synthesized voice for one language.
type LanguageParams struct {
	Pitch float64
	Speed float64
	Voice string
}

func DefaultLanguages() map[string]LanguageParams {
	return map[string]LanguageParams{
		"pt-br": {Pitch: 1.2, Speed: 0.9, Voice: "nova"},
		"en":    {Pitch: 1.5, Speed: 1.1, Voice: "shimmer"},
		"es":    {Pitch: 1.1, Speed: 1.0, Voice: "nova"},
		"ja":    {Pitch: 1.8, Speed: 1.2, Voice: "shimmer"},
	}
}

// Store caches the path of each rendered clip.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
}

// TTS writes spoken text as mp3 to dst.
type TTS interface {
	Synthesize(ctx context.Context, text, voice, dst string) error
}

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type Config struct {
	Dir        string
	Lang       string
	TTL        time.Duration
	FFmpegPath string
	Languages  map[string]LanguageParams
}

// Synthesizer renders persona replies as Telegram voice notes. Clips are
// keyed by content and voice parameters so identical replies are rendered
// once.
type Synthesizer struct {
	store  Store
	tts    TTS
	runner Runner
	cfg    Config
	logger *slog.Logger

	locks [32]sync.Mutex
}

func NewSynthesizer(store Store, tts TTS, runner Runner, cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	if store == nil {
		return nil, errors.New("voice: store must not be nil")
	}
	if tts == nil {
		return nil, errors.New("voice: tts must not be nil")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("voice: cache dir must not be empty")
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages()
	}
	if _, ok := cfg.Languages[cfg.Lang]; !ok {
		return nil, fmt.Errorf("voice: no parameters for language %q", cfg.Lang)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{store: store, tts: tts, runner: runner, cfg: cfg, logger: logger}, nil
}

// Key returns the cache key for a clip hash.
func Key(hash string) string {
	return keyPrefix + hash
}

// Hash identifies a clip by its text, language, emotion and voice parameters.
func Hash(text, lang string, emotion domain.Emotion, p LanguageParams) string {
	sum := md5.Sum([]byte(strings.Join([]string{
		text, lang, string(emotion), formatFloat(p.Pitch), formatFloat(p.Speed),
	}, "-")))
	return hex.EncodeToString(sum[:])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Filter is the ffmpeg audio filter that applies pitch and speed.
func Filter(p LanguageParams) string {
	rate := int(math.Round(baseRate * p.Pitch))
	return fmt.Sprintf("asetrate=%d,atempo=%s", rate, formatFloat(p.Speed))
}

// Synthesize returns the path of an ogg/opus clip speaking text. userID is
// accepted for per-user language selection; every user currently gets the
// configured language.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, userID int64, emotion domain.Emotion) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("voice: text must not be empty")
	}
	lang := s.cfg.Lang
	params := s.cfg.Languages[lang]

	hash := Hash(text, lang, emotion, params)
	key := Key(hash)

	mu := &s.locks[int(hash[0])%len(s.locks)]
	mu.Lock()
	defer mu.Unlock()

	if path := s.cached(ctx, key); path != "" {
		s.logger.Debug("voice_cache_hit", "user_id", userID, "key", key)
		return path, nil
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("voice: create cache dir: %w", err)
	}
	base := filepath.Join(s.cfg.Dir, hash+"_base.mp3")
	final := filepath.Join(s.cfg.Dir, hash+".ogg")

	if err := s.tts.Synthesize(ctx, text, params.Voice, base); err != nil {
		removeIfExists(base)
		return "", fmt.Errorf("voice: synthesize: %w", err)
	}

	out, err := s.runner.Run(ctx, s.cfg.FFmpegPath,
		"-i", base,
		"-y",
		"-filter:a", Filter(params),
		"-c:a", "libopus",
		"-b:a", "48k",
		final,
	)
	if err != nil {
		removeIfExists(base)
		s.logger.Error("ffmpeg failed", "user_id", userID, "err", err, "output", tail(string(out), 512))
		return "", fmt.Errorf("voice: ffmpeg: %w", err)
	}
	removeIfExists(base)

	if err := s.store.SetEX(ctx, key, final, s.cfg.TTL); err != nil {
		s.logger.Warn("voice_cache_write_failed", "key", key, "err", err)
	}
	s.logger.Info("voice_generated", "user_id", userID, "path", final, "pitch", params.Pitch, "speed", params.Speed)
	return final, nil
}

func (s *Synthesizer) cached(ctx context.Context, key string) string {
	path, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("voice_cache_read_failed", "key", key, "err", err)
		return ""
	}
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("voice: remove temp file", "path", path, "err", err)
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
