package quiz

import (
	"fmt"
	"math"
)

// Session walks one user through a bank. It is not safe for concurrent use;
// callers serialize access (see session.Manager).
type Session struct {
	bank  *Bank
	state State
}

// NewSession starts a session at the first question.
func NewSession(bank *Bank) *Session {
	return &Session{bank: bank}
}

// Restore rebuilds a session from a stored state. A state that does not fit
// the bank is discarded and the session starts over.
func Restore(bank *Bank, state State) *Session {
	s := &Session{bank: bank}
	if valid(bank, state) {
		s.state = cloneState(state)
	}
	return s
}

func valid(bank *Bank, st State) bool {
	n := bank.Len()
	if st.CurrentIndex < 0 || st.CurrentIndex >= n {
		return false
	}
	if st.Score < 0 || st.Score > n {
		return false
	}
	if st.Selected != nil {
		if *st.Selected < 0 || *st.Selected >= len(bank.questions[st.CurrentIndex].Options) {
			return false
		}
	}
	if st.Finished && (st.CurrentIndex != n-1 || st.Selected == nil) {
		return false
	}
	return true
}

// State returns a copy of the current state.
func (s *Session) State() State {
	return cloneState(s.state)
}

// Bank returns the bank the session runs over.
func (s *Session) Bank() *Bank {
	return s.bank
}

// Select records the answer for the current question. It is ignored when an
// option is already selected, the index is out of range, or the quiz is finished.
// The return value reports whether the selection was applied.
func (s *Session) Select(optionIndex int) bool {
	if s.state.Finished || s.state.Selected != nil {
		return false
	}
	options := s.bank.questions[s.state.CurrentIndex].Options
	if optionIndex < 0 || optionIndex >= len(options) {
		return false
	}

	idx := optionIndex
	s.state.Selected = &idx
	if options[optionIndex].IsCorrect {
		s.state.Score++
	}
	return true
}

// Advance moves past an answered question. On the last question it
// finishes the quiz and keeps the index where it is.
func (s *Session) Advance() bool {
	if s.state.Finished || s.state.Selected == nil {
		return false
	}
	if s.state.CurrentIndex+1 == s.bank.Len() {
		s.state.Finished = true
		return true
	}
	s.state.CurrentIndex++
	s.state.Selected = nil
	return true
}

// Restart resets the session to the first question with no score.
func (s *Session) Restart() {
	s.state = State{}
}

// LastAnswerCorrect reports whether the current selection is the correct option.
func (s *Session) LastAnswerCorrect() bool {
	if s.state.Selected == nil {
		return false
	}
	return s.bank.questions[s.state.CurrentIndex].Options[*s.state.Selected].IsCorrect
}

// View derives the render snapshot from the current state.
func (s *Session) View() View {
	total := s.bank.Len()
	st := s.state

	answered := st.CurrentIndex
	if st.Selected != nil {
		answered++
	}
	progress := float64(answered) / float64(total)
	progress = math.Max(0, math.Min(1, progress))

	v := View{
		QuestionNumber:  st.CurrentIndex + 1,
		Progress:        progress,
		ProgressPercent: int(math.Round(progress * 100)),
		HeaderText:      fmt.Sprintf("Question %d / %d", st.CurrentIndex+1, total),
		Score:           st.Score,
		Total:           total,
		Finished:        st.Finished,
		CanRestart:      st.Finished,
	}
	if st.Selected != nil {
		sel := *st.Selected
		v.Selected = &sel
	}

	if st.Finished {
		v.ResultTitle = ResultTitle
		v.ResultText = fmt.Sprintf("Your Score: %d/%d", st.Score, total)
		return v
	}

	q := s.bank.Question(st.CurrentIndex)
	v.QuestionText = q.Text
	v.Options = make([]OptionView, len(q.Options))
	for i, opt := range q.Options {
		v.Options[i] = OptionView{
			Index:    i,
			Text:     opt.Text,
			Category: category(opt, i, st.Selected),
		}
	}
	v.CanSelect = st.Selected == nil
	v.CanAdvance = st.Selected != nil
	return v
}

func category(opt AnswerOption, index int, selected *int) string {
	switch {
	case selected == nil:
		return CategoryNeutral
	case index == *selected && opt.IsCorrect:
		return CategoryCorrect
	case index == *selected:
		return CategoryIncorrect
	case opt.IsCorrect:
		return CategoryCorrect
	default:
		return CategoryNeutral
	}
}

func cloneState(st State) State {
	out := st
	if st.Selected != nil {
		sel := *st.Selected
		out.Selected = &sel
	}
	return out
}
