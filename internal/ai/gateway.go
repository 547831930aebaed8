package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
)

// FallbackText is returned whenever retries are exhausted. Callers treat
// it as a successful generation.
const FallbackText = "Generation is unavailable right now. Try again a bit later."

const (
	maxAttempts     = 3
	backoffBase     = 4 * time.Second
	backoffCap      = 10 * time.Second
	MaxMorningCalls = 5
	MaxUnblockCalls = 10
)

type QuotaKind string

const (
	QuotaMorning QuotaKind = "morning"
	QuotaUnblock QuotaKind = "unblock"
)

// QuotaStore tracks per-user-per-day generation counters. TakeQuota
// increments the counter for the user's local date and reports whether the
// call is admitted under the limit.
type QuotaStore interface {
	TakeQuota(ctx context.Context, userID uuid.UUID, kind QuotaKind, limit int, localDate time.Time) (bool, error)
}

// ToneContext is the user state the tone rule needs.
type ToneContext struct {
	StreakDays     int
	CompletedToday int
	TimezoneOffset int
	UserID         uuid.UUID
}

type StagePlan struct {
	Title string `json:"title"`
	Days  int    `json:"days"`
}

type StepPlan struct {
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Minutes    int    `json:"minutes"`
}

type Suggestion struct {
	Variant string `json:"variant"`
	Text    string `json:"text"`
}

type TextResult struct {
	Text        string
	Fallback    bool
	RateLimited bool
	ResetAt     time.Time
}

type StepsResult struct {
	Plans       []StepPlan
	Fallback    bool
	RateLimited bool
	ResetAt     time.Time
}

type SuggestionsResult struct {
	Suggestions []Suggestion
	Fallback    bool
	RateLimited bool
	ResetAt     time.Time
}

// Gateway is constructed once at process start and shared by reference.
type Gateway struct {
	gen    Generator
	quotas QuotaStore

	morningLimit int
	unblockLimit int

	// Injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

func NewGateway(gen Generator, quotas QuotaStore) *Gateway {
	return &Gateway{
		gen:          gen,
		quotas:       quotas,
		morningLimit: MaxMorningCalls,
		unblockLimit: MaxUnblockCalls,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// call runs one generation under the bounded retry contract. It never
// returns an error: exhausted retries degrade to the fixed fallback.
func (g *Gateway) call(ctx context.Context, tctx ToneContext, prompt string, opts Options) (string, bool) {
	tone := domain.ToneFor(tctx.StreakDays, tctx.CompletedToday)
	system := systemPrompt + "\n\nTone for this reply: " + domain.ToneInstructions[tone]

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := g.gen.Generate(ctx, system, prompt, opts)
		if err == nil {
			return text, false
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		if attempt < maxAttempts {
			g.sleep(backoffDelay(attempt))
		}
	}
	slog.Error("generation failed, returning fallback", slog.String("error", lastErr.Error()))
	return FallbackText, true
}

// Exponential backoff with jitter: 4s, 8s, capped at 10s.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		d = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}

func (g *Gateway) takeQuota(ctx context.Context, tctx ToneContext, kind QuotaKind, limit int) (bool, time.Time, error) {
	localNow := g.now().UTC().Add(time.Duration(tctx.TimezoneOffset) * time.Hour)
	localDate := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)
	allowed, err := g.quotas.TakeQuota(ctx, tctx.UserID, kind, limit, localDate)
	if err != nil {
		return false, time.Time{}, err
	}
	if allowed {
		return true, time.Time{}, nil
	}
	return false, NextLocalMidnight(g.now().UTC(), tctx.TimezoneOffset), nil
}

// NextLocalMidnight converts the reset boundary of a per-day counter to UTC.
func NextLocalMidnight(nowUTC time.Time, offsetHours int) time.Time {
	local := nowUTC.Add(time.Duration(offsetHours) * time.Hour)
	nextLocal := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return nextLocal.Add(-time.Duration(offsetHours) * time.Hour)
}

// DecomposeGoal splits a goal into 2-4 stage plans spread to the deadline.
// Parse failures degrade to a single stage spanning the whole period.
func (g *Gateway) DecomposeGoal(ctx context.Context, tctx ToneContext, goalTitle string, deadline, today time.Time) []StagePlan {
	prompt := fmt.Sprintf(`Break the goal into 2-4 stages. No fluff.

Goal: %s
Deadline: %s
Today: %s

REQUIREMENTS:
- Each stage is one concrete logical block
- Spread evenly across the time left
- The last stage ends BEFORE the deadline

JSON (no markdown, no fences):
[{"title": "Concrete stage title", "days": number_of_days}]`,
		goalTitle, deadline.Format("2006-01-02"), today.Format("2006-01-02"))

	text, _ := g.call(ctx, tctx, prompt, Options{Temperature: 0.7})
	var plans []StagePlan
	if err := sonic.Unmarshal([]byte(stripFences(text)), &plans); err == nil && len(plans) > 0 {
		return plans
	}
	slog.Warn("decompose response unparsable, using single-stage fallback")
	days := int(deadline.Sub(today).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return []StagePlan{{Title: goalTitle, Days: days}}
}

// DailySteps generates up to 3 step plans for today. Gated by the morning
// quota; an exhausted quota does not contact the generator.
func (g *Gateway) DailySteps(ctx context.Context, tctx ToneContext, stageTitle string, energy int, mood string) (StepsResult, error) {
	allowed, resetAt, err := g.takeQuota(ctx, tctx, QuotaMorning, g.morningLimit)
	if err != nil {
		return StepsResult{}, err
	}
	if !allowed {
		return StepsResult{RateLimited: true, ResetAt: resetAt}, nil
	}
	if mood == "" {
		mood = "not specified"
	}
	prompt := fmt.Sprintf(`Give 1-3 steps for today. Now.

Stage: %s
Energy: %d/10
Mood: %s

RULES:
- Energy 1-3? One 5-minute action. Now
- Energy 4-6? 1-2 steps, 15-30 minutes. No excuses
- Energy 7-10? 2-3 steps, go bigger

JSON (no markdown, no fences):
[{"title": "Concrete action", "difficulty": "easy|medium|hard", "minutes": number}]`,
		stageTitle, energy, mood)

	text, fellBack := g.call(ctx, tctx, prompt, Options{Temperature: 0.7})
	var plans []StepPlan
	if err := sonic.Unmarshal([]byte(stripFences(text)), &plans); err == nil && len(plans) > 0 {
		return StepsResult{Plans: plans, Fallback: fellBack}, nil
	}
	slog.Warn("daily steps response unparsable, using single-step fallback")
	return StepsResult{
		Plans:    []StepPlan{{Title: "Do one small action on the task", Difficulty: "easy", Minutes: 10}},
		Fallback: true,
	}, nil
}

// MicroStep generates one 2-minute action for low-energy entry points.
// Gated by the morning quota.
func (g *Gateway) MicroStep(ctx context.Context, tctx ToneContext, stageTitle string, energy int, mood string) (TextResult, error) {
	allowed, resetAt, err := g.takeQuota(ctx, tctx, QuotaMorning, g.morningLimit)
	if err != nil {
		return TextResult{}, err
	}
	if !allowed {
		return TextResult{RateLimited: true, ResetAt: resetAt}, nil
	}
	if mood == "" {
		mood = "not specified"
	}
	prompt := fmt.Sprintf(`Energy is at %d/10, mood: "%s".
Stage: %s

Give ONE micro action. 2 minutes max. Done right now.

Requirements:
- Minimal effort, but it gets DONE
- No "when I have energy" escape hatches
- A concrete action, not an abstraction
- 1-2 sentences, no emoji, no friendliness`,
		energy, mood, stageTitle)

	text, fellBack := g.call(ctx, tctx, prompt, Options{Temperature: 0.8, MaxTokens: 150})
	return TextResult{Text: text, Fallback: fellBack}, nil
}

// UnblockSuggestions asks for count distinct 2-5 minute unblock options in
// one structured call. A failed parse degrades to templated options built
// from the step title, never to zero options. Gated by the unblock quota.
func (g *Gateway) UnblockSuggestions(ctx context.Context, tctx ToneContext, stepTitle string, blocker domain.BlockerType, details string, count int) (SuggestionsResult, error) {
	allowed, resetAt, err := g.takeQuota(ctx, tctx, QuotaUnblock, g.unblockLimit)
	if err != nil {
		return SuggestionsResult{}, err
	}
	if !allowed {
		return SuggestionsResult{RateLimited: true, ResetAt: resetAt}, nil
	}
	if count < 2 {
		count = 2
	}
	if count > 3 {
		count = 3
	}
	if details == "" {
		details = "not given"
	}
	prompt := fmt.Sprintf(`The user is stuck. Give %d DIFFERENT unblock moves.

Step: %s
Blocker: %s
Details: %s

Each move is a different 2-5 minute approach, not a reworded copy:
1. Minimal (the simplest action, 1-2 minutes)
2. Moderate (slightly more effort, 3-5 minutes)
3. Alternative (a different angle on the task)

No sympathy, no "try", commands only. 1-2 sentences each.

JSON (no markdown, no fences):
[{"variant": "minimal", "text": "..."}, {"variant": "moderate", "text": "..."}, {"variant": "alternative", "text": "..."}]`,
		count, stepTitle, domain.BlockerDescription(blocker), details)

	text, fellBack := g.call(ctx, tctx, prompt, Options{Temperature: 0.8, MaxTokens: 500})
	var suggestions []Suggestion
	if err := sonic.Unmarshal([]byte(stripFences(text)), &suggestions); err == nil && len(suggestions) > 0 {
		if len(suggestions) > count {
			suggestions = suggestions[:count]
		}
		return SuggestionsResult{Suggestions: suggestions, Fallback: fellBack}, nil
	}
	slog.Warn("unblock suggestions unparsable, using templated fallback")
	return SuggestionsResult{Suggestions: templatedSuggestions(stepTitle, count), Fallback: true}, nil
}

// Diagnosis produces the short post-quiz verdict. Not quota-gated.
func (g *Gateway) Diagnosis(ctx context.Context, tctx ToneContext, answersSummary string, score float64) TextResult {
	prompt := fmt.Sprintf(`Tell the user the truth: what their main block is and what
happens if nothing changes. 3-4 sentences, direct, no sugar, no moralizing.

Avoidance score: %.0f
%s`, score, answersSummary)

	text, fellBack := g.call(ctx, tctx, prompt, Options{Temperature: 0.35, MaxTokens: 200})
	return TextResult{Text: strings.TrimSpace(text), Fallback: fellBack}
}

func templatedSuggestions(stepTitle string, count int) []Suggestion {
	lowered := strings.ToLower(stepTitle)
	all := []Suggestion{
		{Variant: "minimal", Text: fmt.Sprintf("Open %s. Don't do it, just open it. 30 seconds.", lowered)},
		{Variant: "moderate", Text: fmt.Sprintf("Timer for 5 minutes. Work on %s. Bad output is fine, stop when the timer rings.", lowered)},
		{Variant: "alternative", Text: "Write one sentence about the task. A bad one is fine. 2 minutes."},
	}
	if count > len(all) {
		count = len(all)
	}
	return all[:count]
}

// Model replies often come wrapped in markdown fences despite the prompt.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) < 2 {
		return text
	}
	inner := strings.TrimSpace(parts[1])
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
