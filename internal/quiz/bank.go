package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyBank       = errors.New("question bank is empty")
	ErrInvalidQuestion = errors.New("invalid question")
)

// Bank is the fixed, ordered question list a session walks through.
// It is never mutated after construction.
type Bank struct {
	questions []Question
}

// NewBank validates the questions and returns an immutable bank.
// Every question needs text, at least two options and exactly one correct option.
func NewBank(questions []Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyBank
	}

	copied := make([]Question, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidQuestion, i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d needs at least 2 options, got %d", ErrInvalidQuestion, i+1, len(q.Options))
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return nil, fmt.Errorf("%w: question %d has %d correct options, want 1", ErrInvalidQuestion, i+1, correct)
		}

		options := make([]AnswerOption, len(q.Options))
		copy(options, q.Options)
		copied[i] = Question{Text: q.Text, Options: options}
	}

	return &Bank{questions: copied}, nil
}

// LoadBank reads a JSON question bank from path.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	bank, err := NewBank(questions)
	if err != nil {
		return nil, fmt.Errorf("load question bank %s: %w", path, err)
	}
	return bank, nil
}

// DefaultBank returns the built-in four question bank.
func DefaultBank() *Bank {
	bank, err := NewBank(defaultQuestions)
	if err != nil {
		panic(err)
	}
	return bank
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Question returns the question at index i. Options are returned as a copy.
func (b *Bank) Question(i int) Question {
	q := b.questions[i]
	options := make([]AnswerOption, len(q.Options))
	copy(options, q.Options)
	return Question{Text: q.Text, Options: options}
}

// Prompts lists question texts in order.
func (b *Bank) Prompts() []string {
	prompts := make([]string, len(b.questions))
	for i, q := range b.questions {
		prompts[i] = q.Text
	}
	return prompts
}

var defaultQuestions = []Question{
	{
		Text: "What is the capital of India?",
		Options: []AnswerOption{
			{Text: "New Delhi", IsCorrect: true},
			{Text: "Mumbai"},
			{Text: "Chennai"},
			{Text: "Kolkata"},
		},
	},
	{
		Text: "Who is the CEO of Tesla?",
		Options: []AnswerOption{
			{Text: "Jeff Bezos"},
			{Text: "Elon Musk", IsCorrect: true},
			{Text: "Bill Gates"},
			{Text: "Tony Stark"},
		},
	},
	{
		Text: "The iPhone was created by which company?",
		Options: []AnswerOption{
			{Text: "Apple", IsCorrect: true},
			{Text: "Intel"},
			{Text: "Amazon"},
			{Text: "Microsoft"},
		},
	},
	{
		Text: "How many Harry Potter books are there?",
		Options: []AnswerOption{
			{Text: "4"},
			{Text: "6"},
			{Text: "7", IsCorrect: true},
			{Text: "8"},
		},
	},
}
