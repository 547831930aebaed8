package errorvalues

import "errors"

var (
	ErrUserExists       = errors.New("such user already exists")
	ErrUserNotFound     = errors.New("user doesn't exists")
	ErrWrongCredentials = errors.New("wrong name or password")
	ErrInvalidToken     = errors.New("invalid auth token")

	ErrGoalNotFound  = errors.New("goal doesn't exist")
	ErrStageNotFound = errors.New("stage doesn't exist")
	ErrStepNotFound  = errors.New("step doesn't exist")
	ErrOwnerNotFound = errors.New("owner row doesn't exist")

	// ErrStepFinished marks a step already in a terminal status. Callers
	// treat it as a benign no-op, not a user-visible failure.
	ErrStepFinished = errors.New("step already finished")

	// ErrGoalComplete is a success-shaped signal: every stage of the goal
	// is completed and there is nothing left to activate.
	ErrGoalComplete = errors.New("goal fully completed")

	ErrDailyLogExists   = errors.New("daily log for this date already exists")
	ErrDailyLogNotFound = errors.New("daily log doesn't exist")

	ErrNoActiveSession   = errors.New("no live guided session for user")
	ErrWrongSessionState = errors.New("unexpected guided session state")
)
