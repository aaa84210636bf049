package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultModel = "tts-1"

// KeyFunc supplies the API key. It is called on every request until a
// client has been built successfully.
type KeyFunc func(ctx context.Context) (string, error)

// HTTPStatusError reports a non-2xx answer from the speech endpoint.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("speech: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client turns text into mp3 audio through the OpenAI speech API.
type Client struct {
	key   KeyFunc
	model string
	opts  []option.RequestOption

	mu     sync.Mutex
	client *openai.Client
}

func NewClient(key KeyFunc, model string, opts ...option.RequestOption) (*Client, error) {
	if key == nil {
		return nil, errors.New("speech: key func must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{key: key, model: model, opts: opts}, nil
}

func (c *Client) resolveClient(ctx context.Context) (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	apiKey, err := c.key(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech: resolve api key: %w", err)
	}
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.opts...)
	client := openai.NewClient(opts...)
	c.client = &client
	return c.client, nil
}

// Synthesize writes the spoken text as mp3 to dst. A partially written file
// is removed on failure.
func (c *Client) Synthesize(ctx context.Context, text, voice, dst string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("speech: text must not be empty")
	}
	if strings.TrimSpace(voice) == "" {
		return errors.New("speech: voice must not be empty")
	}
	client, err := c.resolveClient(ctx)
	if err != nil {
		return err
	}

	res, err := client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return &HTTPStatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return fmt.Errorf("speech: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("speech: create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("speech: write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("speech: close %s: %w", dst, err)
	}
	return nil
}
