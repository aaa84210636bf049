package emotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"aimibot/internal/cache"
	"aimibot/internal/domain"
)

type fakeStore struct {
	vals    map[string]string
	getErr  error
	setErr  error
	setKeys []string
	lastTTL time.Duration
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.vals[key], nil
}

func (f *fakeStore) SetEX(_ context.Context, key, value string, ttl time.Duration) error {
	f.setKeys = append(f.setKeys, key)
	f.lastTTL = ttl
	if f.setErr != nil {
		return f.setErr
	}
	if f.vals == nil {
		f.vals = map[string]string{}
	}
	f.vals[key] = value
	return nil
}

func defaultTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(DefaultTriggers())
	require.NoError(t, err)
	return table
}

func newTestTracker(t *testing.T, store Store) *Tracker {
	t.Helper()
	tr, err := NewTracker(store, defaultTable(t), Config{Default: domain.EmotionCarinhosa, TTL: 2 * time.Hour}, nil)
	require.NoError(t, err)
	return tr
}

func newRedisTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return newTestTracker(t, c), mr
}

func TestKey(t *testing.T) {
	require.Equal(t, "aimi:emotion:42", Key(42))
}

func TestNewTracker_Validates(t *testing.T) {
	table := defaultTable(t)
	_, err := NewTracker(nil, table, Config{Default: domain.EmotionCarinhosa}, nil)
	require.Error(t, err)

	_, err = NewTracker(&fakeStore{}, nil, Config{Default: domain.EmotionCarinhosa}, nil)
	require.Error(t, err)

	_, err = NewTracker(&fakeStore{}, table, Config{Default: "zangada"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not in the trigger table")

	tr, err := NewTracker(&fakeStore{}, table, Config{Default: domain.EmotionFofa}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, tr.ttl)
	require.Equal(t, domain.EmotionFofa, tr.Default())
}

func TestCurrent_NoActivityReturnsDefault(t *testing.T) {
	tr, _ := newRedisTracker(t)
	require.Equal(t, domain.EmotionCarinhosa, tr.Current(context.Background(), 1))
}

func TestCurrent_ReadErrorReturnsDefault(t *testing.T) {
	tr := newTestTracker(t, &fakeStore{getErr: errors.New("connection refused")})
	require.Equal(t, domain.EmotionCarinhosa, tr.Current(context.Background(), 1))
}

func TestCurrent_UnknownCachedLabelReturnsDefault(t *testing.T) {
	tr := newTestTracker(t, &fakeStore{vals: map[string]string{"aimi:emotion:1": "zangada"}})
	require.Equal(t, domain.EmotionCarinhosa, tr.Current(context.Background(), 1))
}

func TestUpdate_SingleLabelPersistsAndReadsBack(t *testing.T) {
	tr, mr := newRedisTracker(t)
	ctx := context.Background()

	got := tr.Update(ctx, 7, "você é gostosa", "hehe")
	require.Equal(t, domain.EmotionProvocante, got)
	require.Equal(t, domain.EmotionProvocante, tr.Current(ctx, 7))

	stored, err := mr.Get("aimi:emotion:7")
	require.NoError(t, err)
	require.Equal(t, "provocante", stored)
	require.Equal(t, 2*time.Hour, mr.TTL("aimi:emotion:7"))
}

func TestUpdate_ExpiresBackToDefault(t *testing.T) {
	tr, mr := newRedisTracker(t)
	ctx := context.Background()

	tr.Update(ctx, 7, "estou triste", "")
	require.Equal(t, domain.EmotionTriste, tr.Current(ctx, 7))

	mr.FastForward(2*time.Hour + time.Second)
	require.Equal(t, domain.EmotionCarinhosa, tr.Current(ctx, 7))
}

func TestUpdate_NoTriggerKeepsPreviousLabel(t *testing.T) {
	store := &fakeStore{vals: map[string]string{"aimi:emotion:3": "fofa"}}
	tr := newTestTracker(t, store)

	got := tr.Update(context.Background(), 3, "bom dia, tudo bem?", "tudo ótimo!")
	require.Equal(t, domain.EmotionFofa, got)
	require.Empty(t, store.setKeys)
}

func TestUpdate_NoTriggerWithoutHistoryReturnsDefault(t *testing.T) {
	store := &fakeStore{}
	tr := newTestTracker(t, store)

	require.Equal(t, domain.EmotionCarinhosa, tr.Update(context.Background(), 3, "bom dia", ""))
	require.Empty(t, store.setKeys)
}

func TestUpdate_WriteFailureStillReturnsLabel(t *testing.T) {
	store := &fakeStore{setErr: errors.New("READONLY")}
	tr := newTestTracker(t, store)

	got := tr.Update(context.Background(), 9, "que vergonha 😳", "")
	require.Equal(t, domain.EmotionEnvergonhada, got)
	require.Equal(t, []string{"aimi:emotion:9"}, store.setKeys)
	require.Equal(t, 2*time.Hour, store.lastTTL)
}

func TestDetect_Scenarios(t *testing.T) {
	table := defaultTable(t)

	cases := []struct {
		name  string
		text  string
		label domain.Emotion
		score int
	}{
		{name: "single keyword", text: "você é gostosa", label: domain.EmotionProvocante, score: 2},
		{name: "two keywords same label", text: "estou triste e sozinho", label: domain.EmotionTriste, score: 6},
		{name: "case insensitive", text: "VOCÊ É GOSTOSA", label: domain.EmotionProvocante, score: 2},
		{name: "emoji only", text: "💔", label: domain.EmotionTriste, score: 3},
		{name: "highest sum wins", text: "sua chata, te amo, beijo, abraço 😘", label: domain.EmotionCarinhosa, score: 4},
		{name: "weight beats count", text: "te amo, sua safada", label: domain.EmotionProvocante, score: 2},
		{name: "tie keeps first declared", text: "safada, que vergonha", label: domain.EmotionProvocante, score: 2},
		{name: "tie between weight one labels", text: "fofa ❤️", label: domain.EmotionCarinhosa, score: 1},
		{name: "nothing", text: "bom dia", label: "", score: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			label, score := table.Detect(tc.text)
			require.Equal(t, tc.label, label)
			require.Equal(t, tc.score, score)
		})
	}
}

func TestDetect_SumsPerMatchingPattern(t *testing.T) {
	table, err := NewTable([]Trigger{
		{Label: "a", Keywords: []string{`oi`}, Weight: 2},
		{Label: "b", Keywords: []string{`oi`, `o`, `i`}, Weight: 1},
	})
	require.NoError(t, err)

	label, score := table.Detect("oi")
	require.Equal(t, domain.Emotion("b"), label)
	require.Equal(t, 3, score)
}

func TestDetect_KeywordsAreRegex(t *testing.T) {
	table, err := NewTable([]Trigger{
		{Label: "x", Keywords: []string{`^oi+$`}, Weight: 1},
	})
	require.NoError(t, err)

	_, score := table.Detect("Oiii")
	require.Equal(t, 1, score)
	_, score = table.Detect("oi tudo bem")
	require.Equal(t, 0, score)
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(nil)
	require.Error(t, err)

	_, err = NewTable([]Trigger{{Label: " ", Weight: 1}})
	require.Error(t, err)

	_, err = NewTable([]Trigger{{Label: "a", Weight: 1}, {Label: "a", Weight: 2}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	_, err = NewTable([]Trigger{{Label: "a", Weight: 0}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "weight")

	_, err = NewTable([]Trigger{{Label: "a", Keywords: []string{"("}, Weight: 1}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "keyword")
}

func TestTable_LabelsKeepDeclarationOrder(t *testing.T) {
	require.Equal(t, []domain.Emotion{
		domain.EmotionProvocante,
		domain.EmotionCarinhosa,
		domain.EmotionFofa,
		domain.EmotionEnvergonhada,
		domain.EmotionTriste,
	}, defaultTable(t).Labels())
}
