// Package questionnaire walks a user through a fixed list of questions,
// collects the answers and hands them to a composer when the user finishes.
//
// The engine is independent of the chat transport: it renders through a
// Presenter and keeps its state in a SessionStore.
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession is returned when an operation needs a session awaiting
// answers and the user has none. Callers treat it as an ignored event.
var ErrNoSession = errors.New("no active questionnaire session")

// Action is a navigation affordance offered with a question.
type Action string

const (
	ActionNext   Action = "next"
	ActionBack   Action = "back"
	ActionFinish Action = "finish"
	ActionMenu   Action = "menu"
)

// ParseAction converts callback data into an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionNext, ActionBack, ActionFinish, ActionMenu:
		return a, true
	default:
		return "", false
	}
}

// AnswerPolicy selects which answers are passed to the composer.
type AnswerPolicy string

const (
	// PolicyAnswered passes only questions the user answered.
	PolicyAnswered AnswerPolicy = "answered"
	// PolicyPadded passes every question, with empty text for unanswered ones.
	PolicyPadded AnswerPolicy = "padded"
)

// ParseAnswerPolicy validates a policy name. An empty name selects PolicyAnswered.
func ParseAnswerPolicy(s string) (AnswerPolicy, error) {
	switch p := AnswerPolicy(s); p {
	case "":
		return PolicyAnswered, nil
	case PolicyAnswered, PolicyPadded:
		return p, nil
	default:
		return "", fmt.Errorf("unknown answer policy %q", s)
	}
}

// Prompt is what the engine asks a Presenter to show.
type Prompt struct {
	Text    string
	Actions []Action
}

// Presenter shows prompts in one chat.
type Presenter interface {
	// Send shows a new message and returns its id.
	Send(ctx context.Context, p Prompt) (int, error)
	// Edit replaces the message with the given id.
	Edit(ctx context.Context, messageID int, p Prompt) error
}

// Composer turns the collected answers and pinned context into final text.
type Composer interface {
	Compose(ctx context.Context, answers map[string]string, pinned string) (string, error)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(ctx context.Context, answers map[string]string, pinned string) (string, error)

// Compose calls f.
func (f ComposerFunc) Compose(ctx context.Context, answers map[string]string, pinned string) (string, error) {
	return f(ctx, answers, pinned)
}

// Engine drives questionnaire sessions. It is safe for concurrent use;
// operations of one user are serialised.
type Engine struct {
	questions QuestionSet
	store     SessionStore
	composer  Composer
	policy    AnswerPolicy
	logger    *slog.Logger
	now       func() time.Time

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the number of mutexes. Users sharing a stripe are
// serialised together.
const lockStripes = 64

// NewEngine creates an engine. The question set must not be empty.
func NewEngine(logger *slog.Logger, questions QuestionSet, store SessionStore, composer Composer, policy AnswerPolicy) (*Engine, error) {
	if questions.Len() == 0 {
		return nil, fmt.Errorf("%w: no questions defined", ErrInvalidQuestions)
	}
	if store == nil || composer == nil {
		return nil, errors.New("session store and composer are required")
	}
	if policy == "" {
		policy = PolicyAnswered
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		questions: questions,
		store:     store,
		composer:  composer,
		policy:    policy,
		logger:    logger.With("component", "questionnaire"),
		now:       time.Now,
	}, nil
}

// Questions returns the question set the engine walks.
func (e *Engine) Questions() QuestionSet {
	return e.questions
}

func (e *Engine) lockFor(userID int64) *sync.Mutex {
	return &e.locks[uint64(userID)%lockStripes]
}

func (e *Engine) lock(userID int64) func() {
	mu := e.lockFor(userID)
	mu.Lock()
	return mu.Unlock
}

// Start creates a fresh session at the first question, replacing any
// existing one, and shows the first question as a new message. pinned is
// kept with the session and passed to the composer on finish.
func (e *Engine) Start(ctx context.Context, userID int64, pinned string, p Presenter) error {
	unlock := e.lock(userID)
	defer unlock()

	now := e.now()
	s := &Session{
		ID:        uuid.NewString(),
		Index:     1,
		Answers:   make(map[string]string),
		Context:   pinned,
		StartedAt: now,
		UpdatedAt: now,
	}

	if err := e.render(ctx, s, p); err != nil {
		return err
	}
	if err := e.store.Save(ctx, userID, s); err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "Questionnaire started", "user_id", userID, "questions", e.questions.Len())
	return nil
}

// SubmitAnswer records text as the answer to the current question, moves to
// the next question without passing the last one and shows it as a new
// message.
func (e *Engine) SubmitAnswer(ctx context.Context, userID int64, text string, p Presenter) error {
	unlock := e.lock(userID)
	defer unlock()

	s, err := e.active(ctx, userID)
	if err != nil {
		return err
	}

	s.Answers[strconv.Itoa(s.Index)] = text
	s.Index = min(s.Index+1, e.questions.Len())
	s.Redisplay = false

	return e.renderAndSave(ctx, userID, s, p)
}

// Navigate applies a button press. Next and back move by one question and
// stop at the first and last question; the current message is edited in
// place. Finish composes the final text and clears the session. Menu
// discards the session.
func (e *Engine) Navigate(ctx context.Context, userID int64, action Action, p Presenter) error {
	switch action {
	case ActionFinish:
		return e.finish(ctx, userID, p)
	case ActionMenu:
		return e.cancel(ctx, userID)
	case ActionNext, ActionBack:
	default:
		return fmt.Errorf("unknown questionnaire action %q", action)
	}

	unlock := e.lock(userID)
	defer unlock()

	s, err := e.active(ctx, userID)
	if err != nil {
		return err
	}

	if action == ActionNext {
		s.Index = min(s.Index+1, e.questions.Len())
	} else {
		s.Index = max(s.Index-1, 1)
	}

	return e.renderAndSave(ctx, userID, s, p)
}

// Render shows the current question again.
func (e *Engine) Render(ctx context.Context, userID int64, p Presenter) error {
	unlock := e.lock(userID)
	defer unlock()

	s, err := e.active(ctx, userID)
	if err != nil {
		return err
	}
	return e.renderAndSave(ctx, userID, s, p)
}

// Active reports whether the user has a session awaiting answers.
func (e *Engine) Active(ctx context.Context, userID int64) (bool, error) {
	s, err := e.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.State() == StateAwaitingAnswer, nil
}

// Session returns a copy of the user's session, or ErrNoSession.
func (e *Engine) Session(ctx context.Context, userID int64) (*Session, error) {
	s, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

func (e *Engine) active(ctx context.Context, userID int64) (*Session, error) {
	s, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.State() != StateAwaitingAnswer {
		return nil, ErrNoSession
	}
	// Sessions saved under a longer question list are pulled back into range.
	s.Index = min(max(s.Index, 1), e.questions.Len())
	return s, nil
}

func (e *Engine) renderAndSave(ctx context.Context, userID int64, s *Session, p Presenter) error {
	s.UpdatedAt = e.now()
	if err := e.render(ctx, s, p); err != nil {
		return err
	}
	return e.store.Save(ctx, userID, s)
}

// render shows the current question, editing the last message when the
// question was already displayed.
func (e *Engine) render(ctx context.Context, s *Session, p Presenter) error {
	q, _ := e.questions.At(s.Index)
	prompt := Prompt{Text: q.Text, Actions: actionsFor(s.Index, e.questions.Len())}

	if s.Redisplay && s.MessageID != 0 {
		if err := p.Edit(ctx, s.MessageID, prompt); err != nil {
			return fmt.Errorf("failed to edit question %d: %w", s.Index, err)
		}
		return nil
	}

	id, err := p.Send(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to send question %d: %w", s.Index, err)
	}
	s.MessageID = id
	s.Redisplay = true
	return nil
}

// actionsFor builds the affordances for a position. A fresh slice is
// returned on every call.
func actionsFor(index, total int) []Action {
	actions := make([]Action, 0, 4)
	if index > 1 {
		actions = append(actions, ActionBack)
	}
	if index < total {
		actions = append(actions, ActionNext)
	}
	return append(actions, ActionMenu, ActionFinish)
}

func (e *Engine) cancel(ctx context.Context, userID int64) error {
	unlock := e.lock(userID)
	defer unlock()

	if _, err := e.active(ctx, userID); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "Questionnaire cancelled", "user_id", userID)
	return nil
}

func (e *Engine) finish(ctx context.Context, userID int64, p Presenter) error {
	s, err := e.Seal(ctx, userID)
	if err != nil {
		return err
	}
	return e.Complete(ctx, userID, s, p)
}

// Seal marks the user's session as finishing and returns a snapshot of it.
// A sealed session accepts no more answers or navigation. Pass the snapshot
// to Complete to compose the text.
func (e *Engine) Seal(ctx context.Context, userID int64) (*Session, error) {
	unlock := e.lock(userID)
	defer unlock()

	s, err := e.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.Finished = true
	s.UpdatedAt = e.now()
	if err := e.store.Save(ctx, userID, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Complete composes the text from a sealed snapshot and sends it. The
// stored session is cleared whatever the outcome, unless a newer session
// has replaced it meanwhile. The user lock is not held while composing.
func (e *Engine) Complete(ctx context.Context, userID int64, s *Session, p Presenter) error {
	if s.State() != StateFinishing {
		return ErrNoSession
	}

	answers := e.answers(s)
	e.logger.DebugContext(ctx, "Questionnaire finishing", "user_id", userID, "answers", len(answers))

	text, err := e.composer.Compose(ctx, answers, s.Context)
	if err != nil {
		err = fmt.Errorf("failed to compose text: %w", err)
	} else if _, sendErr := p.Send(ctx, Prompt{Text: text}); sendErr != nil {
		err = fmt.Errorf("failed to send composed text: %w", sendErr)
	}

	return errors.Join(err, e.clear(context.WithoutCancel(ctx), userID, s.ID))
}

// clear deletes the session unless it was replaced by a newer one.
func (e *Engine) clear(ctx context.Context, userID int64, sessionID string) error {
	unlock := e.lock(userID)
	defer unlock()

	cur, err := e.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	if cur == nil || cur.ID != sessionID {
		return nil
	}
	return e.store.Delete(ctx, userID)
}

func (e *Engine) answers(s *Session) map[string]string {
	out := make(map[string]string, e.questions.Len())
	for k, v := range s.Answers {
		out[k] = v
	}
	if e.policy == PolicyPadded {
		for i := 1; i <= e.questions.Len(); i++ {
			key := strconv.Itoa(i)
			if _, ok := out[key]; !ok {
				out[key] = ""
			}
		}
	}
	return out
}
