package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

// In-memory repository fakes shared by the service tests. They count
// writes so tests can assert that repeated reads stay read-only.

type memUsersRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*entity.UserProfile
	writes int
}

func newMemUsersRepo() *memUsersRepo {
	return &memUsersRepo{users: map[uuid.UUID]*entity.UserProfile{}}
}

func (m *memUsersRepo) add(u *entity.UserProfile) *entity.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == (uuid.UUID{}) {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memUsersRepo) Create(ctx context.Context, user *entity.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Name == user.Name || u.ExternalID == user.ExternalID {
			return errorvalues.ErrUserExists
		}
	}
	user.ID = uuid.New()
	m.users[user.ID] = user
	m.writes++
	return nil
}

func (m *memUsersRepo) FindByExternalID(ctx context.Context, externalID int64) (*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errorvalues.ErrUserNotFound
}

func (m *memUsersRepo) FindByID(ctx context.Context, uid uuid.UUID) (*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, errorvalues.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsersRepo) FindByName(ctx context.Context, name string) (*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errorvalues.ErrUserNotFound
}

func (m *memUsersRepo) Update(ctx context.Context, user *entity.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[user.ID]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	stored.Name = user.Name
	stored.PasswordHash = user.PasswordHash
	stored.ReminderMorning = user.ReminderMorning
	stored.ReminderEvening = user.ReminderEvening
	stored.TimezoneOffset = user.TimezoneOffset
	stored.RemindersEnabled = user.RemindersEnabled
	m.writes++
	return nil
}

func (m *memUsersRepo) UpdateStats(ctx context.Context, uid uuid.UUID, xp, level, streakDays int, streakLastDate *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	u.XP = xp
	u.Level = level
	u.StreakDays = streakDays
	u.StreakLastDate = streakLastDate
	m.writes++
	return nil
}

func (m *memUsersRepo) UpdateReminderInstants(ctx context.Context, uid uuid.UUID, morning, evening *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	u.NextMorningReminderAt = morning
	u.NextEveningReminderAt = evening
	m.writes++
	return nil
}

func (m *memUsersRepo) AdvanceReminderInstant(ctx context.Context, uid uuid.UUID, evening bool, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	if evening {
		u.NextEveningReminderAt = at
	} else {
		u.NextMorningReminderAt = at
	}
	m.writes++
	return nil
}

func (m *memUsersRepo) UpdateDependencyScore(ctx context.Context, uid uuid.UUID, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	u.DependencyScore = score
	m.writes++
	return nil
}

func (m *memUsersRepo) FindDueReminders(ctx context.Context, now time.Time, evening bool) ([]*entity.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := make([]*entity.UserProfile, 0)
	for _, u := range m.users {
		if !u.RemindersEnabled {
			continue
		}
		at := u.NextMorningReminderAt
		if evening {
			at = u.NextEveningReminderAt
		}
		if at != nil && !at.After(now) {
			cp := *u
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExternalID < due[j].ExternalID })
	return due, nil
}

func (m *memUsersRepo) Delete(ctx context.Context, uid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[uid]; !ok {
		return errorvalues.ErrUserNotFound
	}
	delete(m.users, uid)
	m.writes++
	return nil
}

type memGoalsRepo struct {
	mu    sync.Mutex
	goals map[uuid.UUID]*entity.Goal
}

func newMemGoalsRepo() *memGoalsRepo {
	return &memGoalsRepo{goals: map[uuid.UUID]*entity.Goal{}}
}

func (m *memGoalsRepo) add(g *entity.Goal) *entity.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == (uuid.UUID{}) {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	m.goals[g.ID] = g
	return g
}

func (m *memGoalsRepo) Create(ctx context.Context, goal *entity.Goal) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal.ID = uuid.New()
	goal.CreatedAt = time.Now()
	cp := *goal
	m.goals[goal.ID] = &cp
	return goal.ID, nil
}

func (m *memGoalsRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, errorvalues.ErrGoalNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGoalsRepo) ListByStatus(ctx context.Context, uid uuid.UUID, status entity.GoalStatus) ([]*entity.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Goal, 0)
	for _, g := range m.goals {
		if g.UserID == uid && g.Status == status {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memGoalsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.GoalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return errorvalues.ErrGoalNotFound
	}
	g.Status = status
	return nil
}

func (m *memGoalsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[id]; !ok {
		return errorvalues.ErrGoalNotFound
	}
	delete(m.goals, id)
	return nil
}

type memStagesRepo struct {
	mu     sync.Mutex
	stages map[uuid.UUID]*entity.Stage
	writes int
}

func newMemStagesRepo() *memStagesRepo {
	return &memStagesRepo{stages: map[uuid.UUID]*entity.Stage{}}
}

func (m *memStagesRepo) add(s *entity.Stage) *entity.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == (uuid.UUID{}) {
		s.ID = uuid.New()
	}
	m.stages[s.ID] = s
	return s
}

func (m *memStagesRepo) Create(ctx context.Context, stage *entity.Stage) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stage.ID = uuid.New()
	cp := *stage
	m.stages[stage.ID] = &cp
	m.writes++
	return stage.ID, nil
}

func (m *memStagesRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[id]
	if !ok {
		return nil, errorvalues.ErrStageNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStagesRepo) byGoal(goalID uuid.UUID) []*entity.Stage {
	out := make([]*entity.Stage, 0)
	for _, s := range m.stages {
		if s.GoalID == goalID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memStagesRepo) ListByGoal(ctx context.Context, goalID uuid.UUID) ([]*entity.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.byGoal(goalID)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *memStagesRepo) ListByGoalAndStatus(ctx context.Context, goalID uuid.UUID, status entity.StageStatus) ([]*entity.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byGoal(goalID)
	out := make([]*entity.Stage, 0)
	for _, s := range all {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order > out[j].Order
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (m *memStagesRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.StageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[id]
	if !ok {
		return errorvalues.ErrStageNotFound
	}
	s.Status = status
	m.writes++
	return nil
}

func (m *memStagesRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, status entity.StageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[id]
	if !ok {
		return errorvalues.ErrStageNotFound
	}
	s.Progress = progress
	s.Status = status
	m.writes++
	return nil
}

func (m *memStagesRepo) DemoteToPending(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.stages[id]; ok {
			s.Status = entity.StagePending
			m.writes++
		}
	}
	return nil
}

type memStepsRepo struct {
	mu    sync.Mutex
	steps map[uuid.UUID]*entity.Step
	order []uuid.UUID
}

func newMemStepsRepo() *memStepsRepo {
	return &memStepsRepo{steps: map[uuid.UUID]*entity.Step{}}
}

func (m *memStepsRepo) add(s *entity.Step) *entity.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == (uuid.UUID{}) {
		s.ID = uuid.New()
	}
	m.steps[s.ID] = s
	m.order = append(m.order, s.ID)
	return s
}

func (m *memStepsRepo) Create(ctx context.Context, step *entity.Step) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step.ID = uuid.New()
	cp := *step
	m.steps[step.ID] = &cp
	m.order = append(m.order, step.ID)
	return step.ID, nil
}

func (m *memStepsRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, errorvalues.ErrStepNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStepsRepo) ListByStage(ctx context.Context, stageID uuid.UUID) ([]*entity.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Step, 0)
	for _, id := range m.order {
		s := m.steps[id]
		if s.StageID == stageID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStepsRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return errorvalues.ErrStepNotFound
	}
	if s.Status != entity.StepPending {
		return errorvalues.ErrStepFinished
	}
	s.Status = entity.StepCompleted
	s.CompletedAt = &at
	return nil
}

func (m *memStepsRepo) MarkSkipped(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return errorvalues.ErrStepNotFound
	}
	if s.Status != entity.StepPending {
		return errorvalues.ErrStepFinished
	}
	s.Status = entity.StepSkipped
	return nil
}

type memDailyLogsRepo struct {
	mu   sync.Mutex
	logs map[string]*entity.DailyLog

	// Forces the next Create to report a lost race exactly failCreates
	// times, mimicking a concurrent writer that inserted first.
	failCreates int
}

func newMemDailyLogsRepo() *memDailyLogsRepo {
	return &memDailyLogsRepo{logs: map[string]*entity.DailyLog{}}
}

func logKey(uid uuid.UUID, date time.Time) string {
	return uid.String() + "/" + date.Format("2006-01-02")
}

func (m *memDailyLogsRepo) Create(ctx context.Context, dlog *entity.DailyLog) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := logKey(dlog.UserID, dlog.Date)
	if _, ok := m.logs[key]; ok {
		return uuid.UUID{}, errorvalues.ErrDailyLogExists
	}
	if m.failCreates > 0 {
		m.failCreates--
		cp := *dlog
		cp.ID = uuid.New()
		m.logs[key] = &cp
		return uuid.UUID{}, errorvalues.ErrDailyLogExists
	}
	dlog.ID = uuid.New()
	cp := *dlog
	m.logs[key] = &cp
	return dlog.ID, nil
}

func (m *memDailyLogsRepo) Get(ctx context.Context, uid uuid.UUID, date time.Time) (*entity.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dlog, ok := m.logs[logKey(uid, date)]
	if !ok {
		return nil, errorvalues.ErrDailyLogNotFound
	}
	cp := *dlog
	cp.AssignedStepIDs = append([]uuid.UUID(nil), dlog.AssignedStepIDs...)
	cp.CompletedStepIDs = append([]uuid.UUID(nil), dlog.CompletedStepIDs...)
	cp.SkipReasons = map[uuid.UUID]string{}
	for k, v := range dlog.SkipReasons {
		cp.SkipReasons[k] = v
	}
	return &cp, nil
}

func (m *memDailyLogsRepo) ListRange(ctx context.Context, uid uuid.UUID, from, to time.Time) ([]*entity.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.DailyLog, 0)
	for _, dlog := range m.logs {
		if dlog.UserID != uid || dlog.Date.Before(from) || dlog.Date.After(to) {
			continue
		}
		cp := *dlog
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memDailyLogsRepo) Update(ctx context.Context, dlog *entity.DailyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, stored := range m.logs {
		if stored.ID == dlog.ID {
			cp := *dlog
			m.logs[key] = &cp
			return nil
		}
	}
	return errorvalues.ErrDailyLogNotFound
}

// fakeGateway answers generation requests with canned content and records
// what it was asked for.
type fakeGateway struct {
	stagePlans  []ai.StagePlan
	stepPlans   []ai.StepPlan
	microText   string
	suggestions []ai.Suggestion

	rateLimited bool
	resetAt     time.Time

	microCalls     int
	dailyCalls     int
	unblockCalls   int
	diagnosisCalls int
	diagnosisScore float64
}

func (f *fakeGateway) DecomposeGoal(ctx context.Context, tctx ai.ToneContext, goalTitle string, deadline, today time.Time) []ai.StagePlan {
	if len(f.stagePlans) > 0 {
		return f.stagePlans
	}
	return []ai.StagePlan{{Title: goalTitle, Days: 7}}
}

func (f *fakeGateway) DailySteps(ctx context.Context, tctx ai.ToneContext, stageTitle string, energy int, mood string) (ai.StepsResult, error) {
	f.dailyCalls++
	if f.rateLimited {
		return ai.StepsResult{RateLimited: true, ResetAt: f.resetAt}, nil
	}
	plans := f.stepPlans
	if len(plans) == 0 {
		plans = []ai.StepPlan{{Title: "Do the thing", Difficulty: "easy", Minutes: 10}}
	}
	return ai.StepsResult{Plans: plans}, nil
}

func (f *fakeGateway) MicroStep(ctx context.Context, tctx ai.ToneContext, stageTitle string, energy int, mood string) (ai.TextResult, error) {
	f.microCalls++
	if f.rateLimited {
		return ai.TextResult{RateLimited: true, ResetAt: f.resetAt}, nil
	}
	text := f.microText
	if text == "" {
		text = "Open the file and write one line"
	}
	return ai.TextResult{Text: text}, nil
}

func (f *fakeGateway) UnblockSuggestions(ctx context.Context, tctx ai.ToneContext, stepTitle string, blocker domain.BlockerType, details string, count int) (ai.SuggestionsResult, error) {
	f.unblockCalls++
	if f.rateLimited {
		return ai.SuggestionsResult{RateLimited: true, ResetAt: f.resetAt}, nil
	}
	suggestions := f.suggestions
	if len(suggestions) == 0 {
		suggestions = []ai.Suggestion{
			{Variant: "minimal", Text: "Open it"},
			{Variant: "moderate", Text: "Five minute timer"},
		}
		if count > 2 {
			suggestions = append(suggestions, ai.Suggestion{Variant: "alternative", Text: "Write one sentence"})
		}
	}
	return ai.SuggestionsResult{Suggestions: suggestions}, nil
}

func (f *fakeGateway) Diagnosis(ctx context.Context, tctx ai.ToneContext, answersSummary string, score float64) ai.TextResult {
	f.diagnosisCalls++
	f.diagnosisScore = score
	return ai.TextResult{Text: "verdict"}
}

// fakeNotifier records sends and optionally fails for chosen recipients.
// onSend, when set, runs before the send is recorded so a test can act as
// a concurrent writer between the sweep's read and its instant advance.
type fakeNotifier struct {
	mu     sync.Mutex
	sent   []int64
	failed map[int64]bool
	onSend func(externalID int64)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failed: map[int64]bool{}}
}

func (f *fakeNotifier) Send(ctx context.Context, externalID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(externalID)
	}
	if f.failed[externalID] {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, externalID)
	return nil
}
