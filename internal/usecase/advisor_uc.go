package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain"
	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
	"gator-course-advisor/internal/domain/ports/repository"
	"gator-course-advisor/internal/infra/logging"
	"gator-course-advisor/internal/infra/metrics"
)

// interruptedContent replaces placeholders found in restored sessions: the
// retrieval that owned them died with the previous process.
const interruptedContent = "This recommendation was interrupted. Please ask again."

const mirrorTimeout = 2 * time.Second

// Compile-time check
var _ AdvisorUseCase = (*advisorUC)(nil)

// TaskRunner executes retrievals off the caller's goroutine. Submit must not
// block; an error means the task will never run.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// EventSink receives the view after every state change. OnView is called with
// the advisor lock held, so it must not block or call back into the advisor.
type EventSink interface {
	OnView(view View)
}

// SessionSummary is the sidebar entry for one session.
type SessionSummary struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	Preview      string             `json:"preview"`
	State        model.SessionState `json:"state"`
	MessageCount int                `json:"message_count"`
	Active       bool               `json:"active"`
	Busy         bool               `json:"busy"`
}

// View is what a client renders: the active ledger, the thinking flag for
// the active session and every session summary, newest first.
type View struct {
	Version         uint64           `json:"version"`
	ActiveSessionID string           `json:"active_session_id"`
	Messages        []model.Message  `json:"messages"`
	Thinking        bool             `json:"thinking"`
	Sessions        []SessionSummary `json:"sessions"`
}

// SubmitResult describes an accepted submission. Submitted is false when the
// text was blank and nothing changed.
type SubmitResult struct {
	Submitted     bool   `json:"submitted"`
	SessionID     string `json:"session_id,omitempty"`
	UserMessageID string `json:"user_message_id,omitempty"`
	PlaceholderID string `json:"placeholder_id,omitempty"`
}

// PendingRetrieval is one entry of the correlation table.
type PendingRetrieval struct {
	PlaceholderID string    `json:"placeholder_id"`
	SessionID     string    `json:"session_id"`
	Query         string    `json:"query"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type AdvisorUseCase interface {
	Submit(ctx context.Context, text string) (SubmitResult, error)
	NewChat(ctx context.Context) (model.Session, error)
	SelectChat(ctx context.Context, sessionID string) error
	DeleteChat(ctx context.Context, sessionID string) error
	View() View
	Sessions() []SessionSummary
	Messages(sessionID string) ([]model.Message, error)
	Pending() []PendingRetrieval
	Restore(ctx context.Context) error
}

type advisorUC struct {
	rec    RecommendationUseCase
	runner TaskRunner
	ids    adapter.IDGenerator
	now    adapter.Clock
	store  repository.SessionSnapshotStore
	sink   EventSink
	limit  int
	log    *zerolog.Logger

	mu      sync.Mutex
	reg     model.Registry
	pending map[string]PendingRetrieval // placeholder id -> target session
	busy    map[string]string           // session id -> placeholder id
	version uint64
}

// NewAdvisorUseCase wires the submission orchestrator. store and sink may be
// nil; clock defaults to time.Now and limit to DefaultRecommendationLimit.
func NewAdvisorUseCase(
	rec RecommendationUseCase,
	runner TaskRunner,
	ids adapter.IDGenerator,
	clock adapter.Clock,
	store repository.SessionSnapshotStore,
	sink EventSink,
	limit int,
	logger *zerolog.Logger,
) *advisorUC {
	if clock == nil {
		clock = time.Now
	}
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &advisorUC{
		rec:     rec,
		runner:  runner,
		ids:     ids,
		now:     clock,
		store:   store,
		sink:    sink,
		limit:   limit,
		log:     logger,
		reg:     model.NewRegistry(),
		pending: make(map[string]PendingRetrieval),
		busy:    make(map[string]string),
	}
}

func (a *advisorUC) Submit(ctx context.Context, text string) (SubmitResult, error) {
	defer logging.TraceDuration(a.log, "AdvisorUC.Submit")()
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.IncSubmission("ignored")
		return SubmitResult{}, nil
	}

	a.mu.Lock()
	sid := a.reg.ActiveID()
	if _, busy := a.busy[sid]; sid != "" && busy {
		a.mu.Unlock()
		metrics.IncSubmission("busy")
		return SubmitResult{}, domain.ErrBusy
	}
	if sid == "" {
		reg, err := a.reg.CreateSession(a.ids.NewSessionID(), "")
		if err != nil {
			a.mu.Unlock()
			metrics.IncSubmission("failed")
			return SubmitResult{}, fmt.Errorf("create session: %w", err)
		}
		a.reg = reg
		sid = reg.ActiveID()
	}

	// Preview first, so it reflects this very message.
	a.reg = a.reg.UpdatePreviewIfEmpty(sid, text)
	sess, _ := a.reg.Session(sid)
	ts := a.timestamp()

	user := model.NewUserMessage(a.ids.NewMessageID(), text, ts)
	ledger, err := sess.Messages.Append(user)
	if err != nil {
		a.mu.Unlock()
		metrics.IncSubmission("failed")
		return SubmitResult{}, fmt.Errorf("append user message: %w", err)
	}
	a.reg = a.reg.RecordMessages(sid, ledger)

	placeholder := model.NewPlaceholder(a.ids.NewMessageID(), ts)
	ledger, err = ledger.Append(placeholder)
	if err != nil {
		a.mu.Unlock()
		metrics.IncSubmission("failed")
		return SubmitResult{}, fmt.Errorf("append placeholder: %w", err)
	}
	a.reg = a.reg.RecordMessages(sid, ledger)

	a.pending[placeholder.ID] = PendingRetrieval{
		PlaceholderID: placeholder.ID,
		SessionID:     sid,
		Query:         text,
		SubmittedAt:   a.now(),
	}
	a.busy[sid] = placeholder.ID
	snap, _ := a.reg.Session(sid)
	a.changedLocked()
	a.mu.Unlock()

	a.mirror(ctx, snap)

	res := SubmitResult{Submitted: true, SessionID: sid, UserMessageID: user.ID, PlaceholderID: placeholder.ID}
	traceID := logging.TraceID(ctx)
	task := func(taskCtx context.Context) error {
		taskCtx = logging.WithSessID(logging.WithTraceID(taskCtx, traceID), sid)
		a.reconcile(taskCtx, placeholder.ID, a.rec.Retrieve(taskCtx, text, a.limit))
		return nil
	}
	if err := a.runner.Submit(task); err != nil {
		logging.With(ctx, a.log).Warn().Err(err).Str("placeholder_id", placeholder.ID).Msg("retrieval not scheduled")
		metrics.IncSubmission("rejected")
		a.reconcile(ctx, placeholder.ID, BusyRecommendation())
		return res, nil
	}

	metrics.IncSubmission("accepted")
	logging.With(ctx, a.log).Debug().
		Str("session_id", sid).
		Str("placeholder_id", placeholder.ID).
		Msg("submission accepted")
	return res, nil
}

// reconcile replaces the placeholder with the retrieval result in whatever
// ledger its session holds now. Results for a missing session or placeholder
// are dropped.
func (a *advisorUC) reconcile(ctx context.Context, placeholderID string, rec Recommendation) {
	log := logging.With(ctx, a.log)

	a.mu.Lock()
	entry, ok := a.pending[placeholderID]
	if !ok {
		a.mu.Unlock()
		log.Debug().Str("placeholder_id", placeholderID).Msg("result for unknown placeholder ignored")
		return
	}
	delete(a.pending, placeholderID)
	if a.busy[entry.SessionID] == placeholderID {
		delete(a.busy, entry.SessionID)
	}

	sess, ok := a.reg.Session(entry.SessionID)
	if !ok || !sess.Messages.Contains(placeholderID) {
		a.changedLocked()
		a.mu.Unlock()
		metrics.IncStaleResult()
		log.Debug().
			Str("session_id", entry.SessionID).
			Str("placeholder_id", placeholderID).
			Msg("stale retrieval result dropped")
		return
	}

	final := model.NewAssistantMessage(a.ids.NewMessageID(), rec.Content, rec.Courses, a.timestamp())
	a.reg = a.reg.RecordMessages(entry.SessionID, sess.Messages.Replace(placeholderID, final))
	snap, _ := a.reg.Session(entry.SessionID)
	a.changedLocked()
	a.mu.Unlock()

	a.mirror(ctx, snap)
	log.Debug().
		Str("placeholder_id", placeholderID).
		Str("message_id", final.ID).
		Int("courses", len(final.Courses)).
		Msg("placeholder reconciled")
}

func (a *advisorUC) NewChat(ctx context.Context) (model.Session, error) {
	a.mu.Lock()
	reg, err := a.reg.CreateSession(a.ids.NewSessionID(), "")
	if err != nil {
		a.mu.Unlock()
		return model.Session{}, fmt.Errorf("new chat: %w", err)
	}
	a.reg = reg
	sess, _ := reg.Active()
	a.changedLocked()
	a.mu.Unlock()

	a.mirror(ctx, sess)
	return sess, nil
}

func (a *advisorUC) SelectChat(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	reg, err := a.reg.SetActive(sessionID)
	if err != nil {
		return err
	}
	a.reg = reg
	a.changedLocked()
	return nil
}

// DeleteChat removes a session. Unknown ids are a no-op. A retrieval still in
// flight for the session stays in the correlation table until it completes
// and is then dropped as stale.
func (a *advisorUC) DeleteChat(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	if _, ok := a.reg.Session(sessionID); !ok {
		a.mu.Unlock()
		return nil
	}
	a.reg = a.reg.Remove(sessionID)
	delete(a.busy, sessionID)
	a.changedLocked()
	a.mu.Unlock()

	if a.store != nil {
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		if err := a.store.Delete(mctx, sessionID); err != nil {
			logging.With(ctx, a.log).Warn().Err(err).Str("session_id", sessionID).Msg("session mirror delete failed")
		}
	}
	return nil
}

func (a *advisorUC) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *advisorUC) Sessions() []SessionSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summariesLocked()
}

func (a *advisorUC) Messages(sessionID string) ([]model.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.reg.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, domain.ErrNotFound)
	}
	return sess.Messages.Messages(), nil
}

// Pending lists the correlation table ordered by submission time.
func (a *advisorUC) Pending() []PendingRetrieval {
	a.mu.Lock()
	out := make([]PendingRetrieval, 0, len(a.pending))
	for _, p := range a.pending {
		out = append(out, p)
	}
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].PlaceholderID < out[j].PlaceholderID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Restore merges mirrored sessions. Sessions already in memory are left alone;
// placeholders in newly merged ledgers belong to retrievals of a previous
// process and are replaced with an interruption notice.
func (a *advisorUC) Restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	defer logging.TraceDuration(a.log, "AdvisorUC.Restore")()
	sessions, err := a.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	a.mu.Lock()
	known := make(map[string]struct{}, a.reg.Len())
	for _, s := range a.reg.Sessions() {
		known[s.ID] = struct{}{}
	}
	a.reg = a.reg.Restore(sessions)
	var touched []model.Session
	for _, loaded := range sessions {
		if _, ok := known[loaded.ID]; ok {
			continue
		}
		s, ok := a.reg.Session(loaded.ID)
		if !ok {
			continue
		}
		ledger, replaced := s.Messages, false
		for _, m := range s.Messages.Messages() {
			if _, live := a.pending[m.ID]; m.Pending && !live {
				ledger = ledger.Replace(m.ID, model.NewAssistantMessage(a.ids.NewMessageID(), interruptedContent, nil, a.timestamp()))
				replaced = true
			}
		}
		if replaced {
			a.reg = a.reg.RecordMessages(s.ID, ledger)
			snap, _ := a.reg.Session(s.ID)
			touched = append(touched, snap)
		}
	}
	a.changedLocked()
	n := a.reg.Len()
	a.mu.Unlock()

	for _, s := range touched {
		a.mirror(ctx, s)
	}
	a.log.Info().Int("sessions", n).Int("interrupted", len(touched)).Msg("sessions restored")
	return nil
}

func (a *advisorUC) timestamp() string {
	return a.now().Format(model.TimestampLayout)
}

// changedLocked refreshes gauges and publishes the new view.
func (a *advisorUC) changedLocked() {
	a.version++
	metrics.SetSessions(a.reg.Len())
	metrics.SetInflight(len(a.pending))
	if a.sink != nil {
		a.sink.OnView(a.viewLocked())
	}
}

func (a *advisorUC) viewLocked() View {
	v := View{
		Version:         a.version,
		ActiveSessionID: a.reg.ActiveID(),
		Messages:        []model.Message{},
		Sessions:        a.summariesLocked(),
	}
	if sess, ok := a.reg.Active(); ok {
		v.Messages = sess.Messages.Messages()
		_, v.Thinking = a.busy[sess.ID]
	}
	return v
}

func (a *advisorUC) summariesLocked() []SessionSummary {
	sessions := a.reg.Sessions()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		_, busy := a.busy[s.ID]
		out = append(out, SessionSummary{
			ID:           s.ID,
			Label:        s.Label,
			Preview:      s.Preview,
			State:        s.State(),
			MessageCount: s.Messages.Len(),
			Active:       s.ID == a.reg.ActiveID(),
			Busy:         busy,
		})
	}
	return out
}

// mirror writes a session snapshot to the external store. Failures are
// logged; the in-memory registry stays authoritative.
func (a *advisorUC) mirror(ctx context.Context, s model.Session) {
	if a.store == nil {
		return
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if err := a.store.Save(mctx, s); err != nil {
		logging.With(ctx, a.log).Warn().Err(err).Str("session_id", s.ID).Int64("revision", s.Revision).Msg("session mirror failed")
	}
}
