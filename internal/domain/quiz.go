package domain

import "math"

// QuizOption is one selectable answer with its avoidance weight.
type QuizOption struct {
	Label  string `json:"label"`
	Weight int    `json:"-"`
}

type QuizQuestion struct {
	Title   string       `json:"title"`
	Options []QuizOption `json:"options"`
}

// QuizQuestions is the avoidance quiz asked before the first goal. Option
// weights feed ScoreQuiz; the order of questions is the order they are asked.
var QuizQuestions = []QuizQuestion{
	{
		Title: "Weeks fly by and you are still at the start?",
		Options: []QuizOption{
			{"Yes", 3}, {"Mostly yes", 2}, {"Mostly no", 1}, {"No", 0},
		},
	},
	{
		Title: "You spend more time planning and thinking about tasks than actually doing them?",
		Options: []QuizOption{
			{"Yes", 3}, {"Mostly yes", 2}, {"Mostly no", 1}, {"No", 0},
		},
	},
	{
		Title: "Busy the whole day, but by evening nothing important got done?",
		Options: []QuizOption{
			{"Yes", 3}, {"Mostly yes", 2}, {"Mostly no", 1}, {"No", 0},
		},
	},
	{
		Title: "The anxiety grows with every day of putting it off?",
		Options: []QuizOption{
			{"Yes", 3}, {"Mostly yes", 2}, {"Mostly no", 1}, {"No", 0},
		},
	},
	{
		Title: "How long have you been living in start-tomorrow mode?",
		Options: []QuizOption{
			{"A few days", 1}, {"A couple of weeks", 2}, {"A month or more", 3}, {"Over a year", 4},
		},
	},
	{
		Title: "Scared to open the task list and see the whole pile?",
		Options: []QuizOption{
			{"Yes, I avoid it", 3}, {"Sometimes", 2}, {"Rarely", 1}, {"No", 0},
		},
	},
	{
		Title: "More lying around and scrolling than moving anything important?",
		Options: []QuizOption{
			{"Constantly", 3}, {"Often", 2}, {"Sometimes", 1}, {"Rarely", 0},
		},
	},
	{
		Title: "Ashamed of the day every evening, yet tomorrow repeats it?",
		Options: []QuizOption{
			{"Yes, it's a loop", 3}, {"Often", 2}, {"Sometimes", 1}, {"Rarely", 0},
		},
	},
	{
		Title: "Already tried to-do lists, habit trackers, motivational videos, and slid back anyway?",
		Options: []QuizOption{
			{"Yes, many times", 3}, {"A couple of times", 2}, {"Once", 1}, {"Never tried", 0},
		},
	},
	{
		Title: "Right now, is there at least one thing you have been putting off for days?",
		Options: []QuizOption{
			{"Yes, and it chokes me", 4}, {"Yes, several", 3}, {"One small thing", 1}, {"No", 0},
		},
	},
}

// QuizBaseline is the score above which avoidance counts as holding the
// user back.
const QuizBaseline = 35

func quizMaxWeight() int {
	total := 0
	for _, q := range QuizQuestions {
		max := 0
		for _, opt := range q.Options {
			if opt.Weight > max {
				max = opt.Weight
			}
		}
		total += max
	}
	return total
}

// ScoreQuiz maps the chosen answer weights to a 0-100 score and its
// distance above QuizBaseline, floored at zero.
func ScoreQuiz(weights []int) (score, aboveBaseline int) {
	total := 0
	for _, w := range weights {
		total += w
	}
	score = int(math.Round(float64(total) / float64(quizMaxWeight()) * 100))
	aboveBaseline = score - QuizBaseline
	if aboveBaseline < 0 {
		aboveBaseline = 0
	}
	return score, aboveBaseline
}
