package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
)

type QuizService struct {
	usersRepo repository.UsersRepositoryI
	gateway   GatewayI
}

func NewQuizService(usersRepo repository.UsersRepositoryI, gateway GatewayI) *QuizService {
	if usersRepo == nil || gateway == nil {
		log.Fatal("on quiz service provided nil dependencies")
	}
	return &QuizService{
		usersRepo: usersRepo,
		gateway:   gateway,
	}
}

// Questions returns the quiz catalog in asking order.
func (serv *QuizService) Questions() []domain.QuizQuestion {
	return domain.QuizQuestions
}

// Submit grades the answers, asks the generator for the verdict and stores
// the score on the profile. answers holds one chosen option index per
// question, in asking order.
func (serv *QuizService) Submit(ctx context.Context, userID uuid.UUID, answers []int) (*QuizVerdict, error) {
	if len(answers) != len(domain.QuizQuestions) {
		return nil, fmt.Errorf("expected %d answers, got %d", len(domain.QuizQuestions), len(answers))
	}
	user, err := serv.usersRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}

	weights := make([]int, 0, len(answers))
	var summary strings.Builder
	for i, chosen := range answers {
		question := domain.QuizQuestions[i]
		if chosen < 0 || chosen >= len(question.Options) {
			return nil, fmt.Errorf("question %d has no option %d", i+1, chosen)
		}
		option := question.Options[chosen]
		weights = append(weights, option.Weight)
		fmt.Fprintf(&summary, "%d. %s -> %s\n", i+1, question.Title, option.Label)
	}
	score, above := domain.ScoreQuiz(weights)

	tctx := ai.ToneContext{
		StreakDays:     user.StreakDays,
		TimezoneOffset: user.TimezoneOffset,
		UserID:         user.ID,
	}
	verdict := serv.gateway.Diagnosis(ctx, tctx, summary.String(), float64(score))

	if err := serv.usersRepo.UpdateDependencyScore(ctx, user.ID, score); err != nil {
		return nil, errors.New("repository updating error: " + err.Error())
	}
	return &QuizVerdict{
		Score:         score,
		AboveBaseline: above,
		Diagnosis:     verdict.Text,
	}, nil
}
