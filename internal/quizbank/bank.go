package quizbank

import (
	_ "embed"
	"fmt"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/goccy/go-json"
)

//go:embed questions.json
var questionsJSON []byte

const optionsPerQuestion = 4

// Bank is the fixed question list the daily quiz draws from. It is read-only after Load.
type Bank struct {
	questions []models.QuizQuestion
	byID      map[int]int
}

// Load parses the embedded question list.
func Load() (*Bank, error) {
	var questions []models.QuizQuestion
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode question bank: %w", err)
	}
	return New(questions)
}

// New validates questions and builds a bank from them.
func New(questions []models.QuizQuestion) (*Bank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	byID := make(map[int]int, len(questions))
	for i, q := range questions {
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		if len(q.Options) != optionsPerQuestion {
			return nil, fmt.Errorf("question %d has %d options, want %d", q.ID, len(q.Options), optionsPerQuestion)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d has correct index %d out of range", q.ID, q.Correct)
		}
		byID[q.ID] = i
	}

	return &Bank{questions: questions, byID: byID}, nil
}

// MustLoad is Load for program start-up.
func MustLoad() *Bank {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns a copy of the question at index i.
func (b *Bank) At(i int) models.QuizQuestion {
	q := b.questions[i]
	q.Options = append([]string(nil), q.Options...)
	return q
}

func (b *Bank) ByID(id int) (models.QuizQuestion, bool) {
	i, ok := b.byID[id]
	if !ok {
		return models.QuizQuestion{}, false
	}
	return b.At(i), true
}

// Categories returns the distinct categories in bank order.
func (b *Bank) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range b.questions {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	return out
}
