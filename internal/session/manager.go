package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-widget/internal/metrics"
	"github.com/gokatarajesh/quiz-widget/internal/quiz"
)

// Intent kinds forwarded by the presentation layer.
const (
	IntentSelect  = "select"
	IntentAdvance = "advance"
	IntentRestart = "restart"
)

// Intent is a single user gesture.
type Intent struct {
	Kind        string
	OptionIndex int
}

// Result is the outcome of applying an intent. Ignored intents are not errors.
type Result struct {
	View    quiz.View
	Applied bool
}

// Manager owns one quiz controller per browser session and applies intents
// to them in arrival order.
type Manager struct {
	bank    *quiz.Bank
	store   Store
	metrics *metrics.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

// NewManager creates a manager over a fixed bank.
func NewManager(bank *quiz.Bank, store Store, rec *metrics.Recorder, logger zerolog.Logger) *Manager {
	return &Manager{
		bank:    bank,
		store:   store,
		metrics: rec,
		logger:  logger.With().Str("component", "session_manager").Logger(),
		now:     time.Now,
	}
}

// Bank returns the question bank shared by every session.
func (m *Manager) Bank() *quiz.Bank {
	return m.bank
}

// Create starts a new session at the first question.
func (m *Manager) Create(ctx context.Context) (uuid.UUID, quiz.View, error) {
	sess := quiz.NewSession(m.bank)
	now := m.now().UTC()
	rec := Record{
		ID:        uuid.New(),
		State:     sess.State(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return uuid.Nil, quiz.View{}, fmt.Errorf("save session: %w", err)
	}

	m.metrics.SessionCreated()
	m.logger.Info().Str("session_id", rec.ID.String()).Msg("session created")
	return rec.ID, sess.View(), nil
}

// View returns the current snapshot of a session.
func (m *Manager) View(ctx context.Context, id uuid.UUID) (quiz.View, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return quiz.View{}, err
	}
	return quiz.Restore(m.bank, rec.State).View(), nil
}

// Apply runs one intent against a session. Intents the controller rejects
// (a second selection, advancing without an answer, unknown kinds) leave the
// state untouched and come back with Applied false.
func (m *Manager) Apply(ctx context.Context, id uuid.UUID, intent Intent) (Result, error) {
	unlock, err := m.store.Lock(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("lock session: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id.String()).Msg("session unlock failed")
		}
	}()

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return Result{}, err
	}

	sess := quiz.Restore(m.bank, rec.State)
	applied := m.dispatch(sess, intent)
	m.metrics.Intent(intent.Kind, applied)

	if applied {
		rec.State = sess.State()
		rec.UpdatedAt = m.now().UTC()
		if err := m.store.Save(ctx, *rec); err != nil {
			return Result{}, fmt.Errorf("save session: %w", err)
		}
	}

	m.logger.Debug().
		Str("session_id", id.String()).
		Str("intent", intent.Kind).
		Bool("applied", applied).
		Int("score", rec.State.Score).
		Msg("intent handled")

	return Result{View: sess.View(), Applied: applied}, nil
}

func (m *Manager) dispatch(sess *quiz.Session, intent Intent) bool {
	switch intent.Kind {
	case IntentSelect:
		if !sess.Select(intent.OptionIndex) {
			return false
		}
		m.metrics.Answer(sess.LastAnswerCorrect())
		return true
	case IntentAdvance:
		if !sess.Advance() {
			return false
		}
		if sess.State().Finished {
			m.metrics.Completed()
		}
		return true
	case IntentRestart:
		sess.Restart()
		return true
	default:
		return false
	}
}

// Delete tears a session down. It waits for an in-flight Apply so that
// Apply's save cannot bring the session back.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := m.store.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id.String()).Msg("session unlock failed")
		}
	}()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.metrics.SessionEnded("deleted")
	m.logger.Info().Str("session_id", id.String()).Msg("session deleted")
	return nil
}
