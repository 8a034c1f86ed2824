// Package quiz is the single-player quiz controller: a fixed question bank,
// the session state machine over it and the view derived for rendering.
package quiz

// Option display categories derived from the session state.
const (
	CategoryNeutral   = "neutral"
	CategoryCorrect   = "correct"
	CategoryIncorrect = "incorrect"
)

// ResultTitle heads the result screen of a finished quiz.
const ResultTitle = "Quiz Finished!"

// AnswerOption is a single choice offered for a question.
type AnswerOption struct {
	Text      string `json:"answer_text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a prompt with its options in display order.
type Question struct {
	Text    string         `json:"question_text"`
	Options []AnswerOption `json:"answer_options"`
}

// State is the mutable part of a quiz session.
// CurrentIndex stays on the last question once Finished is set.
type State struct {
	CurrentIndex int  `json:"current_index"`
	Score        int  `json:"score"`
	Selected     *int `json:"selected_option_index"`
	Finished     bool `json:"finished"`
}

// OptionView is an option as the presentation layer renders it.
type OptionView struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// View is a read-only snapshot of a session for rendering.
type View struct {
	QuestionNumber  int          `json:"question_number"`
	QuestionText    string       `json:"question_text,omitempty"`
	Options         []OptionView `json:"options,omitempty"`
	Selected        *int         `json:"selected_option_index"`
	Progress        float64      `json:"progress"`
	ProgressPercent int          `json:"progress_percent"`
	HeaderText      string       `json:"header_text"`
	Score           int          `json:"score"`
	Total           int          `json:"total"`
	Finished        bool         `json:"finished"`
	ResultTitle     string       `json:"result_title,omitempty"`
	ResultText      string       `json:"result_text,omitempty"`
	CanSelect       bool         `json:"can_select"`
	CanAdvance      bool         `json:"can_advance"`
	CanRestart      bool         `json:"can_restart"`
}
