package ai

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
)

// scriptedGenerator replays a fixed sequence of replies and errors and
// records everything it was asked.
type scriptedGenerator struct {
	replies []string
	errs    []error

	calls   int
	prompts []string
	opts    []Options
}

func (s *scriptedGenerator) Generate(ctx context.Context, systemTone, prompt string, opts Options) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", ErrBadOutput
}

type fakeQuotas struct {
	allowed bool
	err     error

	calls  int
	kinds  []QuotaKind
	limits []int
	dates  []time.Time
}

func (f *fakeQuotas) TakeQuota(ctx context.Context, userID uuid.UUID, kind QuotaKind, limit int, localDate time.Time) (bool, error) {
	f.calls++
	f.kinds = append(f.kinds, kind)
	f.limits = append(f.limits, limit)
	f.dates = append(f.dates, localDate)
	return f.allowed, f.err
}

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestGateway(gen *scriptedGenerator, quotas *fakeQuotas) (*Gateway, *[]time.Duration) {
	g := NewGateway(gen, quotas)
	sleeps := &[]time.Duration{}
	g.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	g.now = func() time.Time { return fixedNow }
	return g, sleeps
}

func TestCallRetries(t *testing.T) {
	ctx := context.Background()
	tctx := ToneContext{UserID: uuid.New()}

	t.Run("succeeds after transient failure", func(t *testing.T) {
		gen := &scriptedGenerator{
			errs:    []error{ErrServer, nil},
			replies: []string{"", "Set a timer for five minutes"},
		}
		g, sleeps := newTestGateway(gen, &fakeQuotas{allowed: true})

		text, fellBack := g.call(ctx, tctx, "prompt", Options{})
		assert.Equal(t, "Set a timer for five minutes", text)
		assert.False(t, fellBack)
		assert.Equal(t, 2, gen.calls)
		assert.Len(t, *sleeps, 1)
	})
	t.Run("exhausted retries return fallback", func(t *testing.T) {
		gen := &scriptedGenerator{errs: []error{ErrTransport, ErrRateLimited, ErrServer}}
		g, sleeps := newTestGateway(gen, &fakeQuotas{allowed: true})

		text, fellBack := g.call(ctx, tctx, "prompt", Options{})
		assert.Equal(t, FallbackText, text)
		assert.True(t, fellBack)
		assert.Equal(t, 3, gen.calls)
		assert.Len(t, *sleeps, 2)
		assert.GreaterOrEqual(t, (*sleeps)[0], 4*time.Second)
		assert.Less(t, (*sleeps)[0], 5*time.Second)
		assert.GreaterOrEqual(t, (*sleeps)[1], 8*time.Second)
		assert.Less(t, (*sleeps)[1], 10*time.Second)
	})
	t.Run("malformed output is not retried", func(t *testing.T) {
		gen := &scriptedGenerator{errs: []error{ErrBadOutput}}
		g, sleeps := newTestGateway(gen, &fakeQuotas{allowed: true})

		text, fellBack := g.call(ctx, tctx, "prompt", Options{})
		assert.Equal(t, FallbackText, text)
		assert.True(t, fellBack)
		assert.Equal(t, 1, gen.calls)
		assert.Empty(t, *sleeps)
	})
}

func TestBackoffDelay(t *testing.T) {
	for i := 0; i < 50; i++ {
		d1 := backoffDelay(1)
		assert.GreaterOrEqual(t, d1, 4*time.Second)
		assert.Less(t, d1, 5*time.Second)

		d3 := backoffDelay(3)
		assert.GreaterOrEqual(t, d3, 10*time.Second)
		assert.Less(t, d3, 12500*time.Millisecond)
	}
}

func TestNextLocalMidnight(t *testing.T) {
	t.Run("positive offset", func(t *testing.T) {
		at := NextLocalMidnight(time.Date(2025, 6, 10, 22, 30, 0, 0, time.UTC), 3)
		assert.Equal(t, time.Date(2025, 6, 11, 21, 0, 0, 0, time.UTC), at)
	})
	t.Run("negative offset", func(t *testing.T) {
		at := NextLocalMidnight(time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC), -5)
		assert.Equal(t, time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC), at)
	})
	t.Run("zero offset", func(t *testing.T) {
		at := NextLocalMidnight(fixedNow, 0)
		assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), at)
	})
}

func TestDailySteps(t *testing.T) {
	ctx := context.Background()
	tctx := ToneContext{UserID: uuid.New(), TimezoneOffset: 3}

	t.Run("parses fenced json", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{
			"```json\n[{\"title\": \"Write the intro\", \"difficulty\": \"medium\", \"minutes\": 25}]\n```",
		}}
		quotas := &fakeQuotas{allowed: true}
		g, _ := newTestGateway(gen, quotas)

		result, err := g.DailySteps(ctx, tctx, "draft", 6, "fine")
		assert.NoError(t, err)
		assert.False(t, result.RateLimited)
		assert.Len(t, result.Plans, 1)
		assert.Equal(t, "Write the intro", result.Plans[0].Title)
		assert.Equal(t, 25, result.Plans[0].Minutes)
		assert.Equal(t, []QuotaKind{QuotaMorning}, quotas.kinds)
		assert.Equal(t, []int{MaxMorningCalls}, quotas.limits)
	})
	t.Run("unparsable reply degrades to a single step", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"just go do stuff"}}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: true})

		result, err := g.DailySteps(ctx, tctx, "draft", 6, "")
		assert.NoError(t, err)
		assert.True(t, result.Fallback)
		assert.Len(t, result.Plans, 1)
		assert.Equal(t, "easy", result.Plans[0].Difficulty)
	})
	t.Run("exhausted quota skips the generator", func(t *testing.T) {
		gen := &scriptedGenerator{}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: false})

		result, err := g.DailySteps(ctx, tctx, "draft", 6, "")
		assert.NoError(t, err)
		assert.True(t, result.RateLimited)
		assert.Equal(t, NextLocalMidnight(fixedNow, 3), result.ResetAt)
		assert.Equal(t, 0, gen.calls)
	})
	t.Run("quota counts against the local date", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"[]"}}
		quotas := &fakeQuotas{allowed: true}
		g, _ := newTestGateway(gen, quotas)

		_, err := g.DailySteps(ctx, ToneContext{UserID: tctx.UserID, TimezoneOffset: 14}, "draft", 6, "")
		assert.NoError(t, err)
		// 12:00 UTC at UTC+14 is already tomorrow.
		assert.Equal(t, []time.Time{time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)}, quotas.dates)
	})
}

func TestMicroStep(t *testing.T) {
	ctx := context.Background()
	tctx := ToneContext{UserID: uuid.New()}

	t.Run("returns generated text", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"Open the doc. Write one line."}}
		quotas := &fakeQuotas{allowed: true}
		g, _ := newTestGateway(gen, quotas)

		result, err := g.MicroStep(ctx, tctx, "draft", 3, "tired")
		assert.NoError(t, err)
		assert.Equal(t, "Open the doc. Write one line.", result.Text)
		assert.Equal(t, []QuotaKind{QuotaMorning}, quotas.kinds)
		assert.Equal(t, 150, gen.opts[0].MaxTokens)
	})
	t.Run("exhausted quota", func(t *testing.T) {
		gen := &scriptedGenerator{}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: false})

		result, err := g.MicroStep(ctx, tctx, "draft", 3, "")
		assert.NoError(t, err)
		assert.True(t, result.RateLimited)
		assert.Equal(t, 0, gen.calls)
	})
}

func TestUnblockSuggestions(t *testing.T) {
	ctx := context.Background()
	tctx := ToneContext{UserID: uuid.New()}

	t.Run("truncates extras to the requested count", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{
			`[{"variant": "minimal", "text": "Open it"},
			  {"variant": "moderate", "text": "Timer for five"},
			  {"variant": "alternative", "text": "Write one line"}]`,
		}}
		quotas := &fakeQuotas{allowed: true}
		g, _ := newTestGateway(gen, quotas)

		result, err := g.UnblockSuggestions(ctx, tctx, "outline chapter", domain.BlockerFear, "", 2)
		assert.NoError(t, err)
		assert.Len(t, result.Suggestions, 2)
		assert.Equal(t, []QuotaKind{QuotaUnblock}, quotas.kinds)
		assert.Equal(t, []int{MaxUnblockCalls}, quotas.limits)
	})
	t.Run("unparsable reply degrades to templated options", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"no json here"}}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: true})

		result, err := g.UnblockSuggestions(ctx, tctx, "Outline Chapter", domain.BlockerUnclear, "brief is vague", 3)
		assert.NoError(t, err)
		assert.True(t, result.Fallback)
		assert.Len(t, result.Suggestions, 3)
		assert.Contains(t, result.Suggestions[0].Text, "outline chapter")
	})
	t.Run("exhausted quota", func(t *testing.T) {
		gen := &scriptedGenerator{}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: false})

		result, err := g.UnblockSuggestions(ctx, tctx, "outline chapter", domain.BlockerNoTime, "", 2)
		assert.NoError(t, err)
		assert.True(t, result.RateLimited)
		assert.Equal(t, 0, gen.calls)
	})
}

func TestDecomposeGoal(t *testing.T) {
	ctx := context.Background()
	tctx := ToneContext{UserID: uuid.New()}
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC)

	t.Run("parses stage plans", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{
			`[{"title": "Research", "days": 5}, {"title": "Draft", "days": 9}]`,
		}}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: true})

		plans := g.DecomposeGoal(ctx, tctx, "finish thesis", deadline, today)
		assert.Len(t, plans, 2)
		assert.Equal(t, "Research", plans[0].Title)
		assert.Equal(t, 9, plans[1].Days)
	})
	t.Run("unparsable reply spans the whole period", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"nope"}}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: true})

		plans := g.DecomposeGoal(ctx, tctx, "finish thesis", deadline, today)
		assert.Equal(t, []StagePlan{{Title: "finish thesis", Days: 14}}, plans)
	})
	t.Run("deadline today still yields one day", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"nope"}}
		g, _ := newTestGateway(gen, &fakeQuotas{allowed: true})

		plans := g.DecomposeGoal(ctx, tctx, "finish thesis", today, today)
		assert.Equal(t, 1, plans[0].Days)
	})
}

func TestDiagnosisSkipsQuota(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"  You stall when the task is vague.  "}}
	quotas := &fakeQuotas{allowed: false}
	g, _ := newTestGateway(gen, quotas)

	result := g.Diagnosis(context.Background(), ToneContext{UserID: uuid.New()}, "skips hard tasks", 72)
	assert.Equal(t, "You stall when the task is vague.", result.Text)
	assert.Equal(t, 0, quotas.calls)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, stripFences("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, stripFences("```\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, stripFences(`[{"a":1}]`))
	assert.Equal(t, "plain text", stripFences("  plain text  "))
}
