package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"polychat/internal/events"
	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/repositories"
	"polychat/internal/retry"
)

const (
	titleLimit      = 30
	checkpointEvery = 100

	watchdogTick = time.Second
	// Idle budgets per provider family: a token stream that goes silent
	// for a minute is dead; an image job legitimately produces nothing
	// for minutes while the task runs.
	tokenIdleBudget   = 60 * time.Second
	pollingIdleBudget = 5 * time.Minute
)

type ChatService interface {
	Startup(ctx context.Context)
	// SendMessage persists the turn and returns the user message
	// immediately; the reply arrives through stream events.
	SendMessage(sessionID, content string, images []models.ImageAttachment, opts *models.GenerationOptions) (*models.Message, error)
	CancelStream(sessionID string)
	ResendMessage(sessionID, messageID string) (*models.Message, error)
	RegenerateLastResponse(sessionID string) error
	SwitchSessionConfig(sessionID, configID string) error
}

type ChatOption func(*chatService)

func WithAdapterFactory(f AdapterFactory) ChatOption {
	return func(s *chatService) { s.newAdapter = f }
}

func WithEmitter(emit events.EmitFunc) ChatOption {
	return func(s *chatService) { s.emit = emit }
}

func WithRetryPolicy(p retry.Policy) ChatOption {
	return func(s *chatService) { s.retryPolicy = p }
}

func WithIdleBudgets(token, polling time.Duration) ChatOption {
	return func(s *chatService) {
		s.tokenBudget = token
		s.pollingBudget = polling
	}
}

func WithWatchdogTick(d time.Duration) ChatOption {
	return func(s *chatService) { s.tick = d }
}

// activeStream is one session's in-flight turn.
type activeStream struct {
	cancel       context.CancelFunc
	timedOut     atomic.Bool
	lastActivity atomic.Int64
}

func (st *activeStream) touch() {
	st.lastActivity.Store(time.Now().UnixNano())
}

func (st *activeStream) idle() time.Duration {
	return time.Since(time.Unix(0, st.lastActivity.Load()))
}

type chatService struct {
	sessions   repositories.ChatSessionRepository
	configs    ConfigService
	newAdapter AdapterFactory
	emit       events.EmitFunc

	retryPolicy   retry.Policy
	tokenBudget   time.Duration
	pollingBudget time.Duration
	tick          time.Duration

	ctx context.Context

	mu     sync.Mutex
	active map[string]*activeStream
	locks  map[string]*sync.Mutex
}

func NewChatService(sessions repositories.ChatSessionRepository, configs ConfigService, opts ...ChatOption) ChatService {
	s := &chatService{
		sessions:      sessions,
		configs:       configs,
		newAdapter:    llm.New,
		emit:          func(ctx context.Context, evt events.StreamEvent) { events.Emit(ctx, evt) },
		retryPolicy:   retry.DefaultPolicy(),
		tokenBudget:   tokenIdleBudget,
		pollingBudget: pollingIdleBudget,
		tick:          watchdogTick,
		active:        make(map[string]*activeStream),
		locks:         make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *chatService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *chatService) SendMessage(sessionID, content string, images []models.ImageAttachment, opts *models.GenerationOptions) (*models.Message, error) {
	cfg, msgs, err := s.loadTurnState(sessionID)
	if err != nil {
		return nil, err
	}

	user := models.NewMessage(sessionID, models.RoleUser, content)
	user.Images = images
	if err := s.sessions.SaveMessage(sessionID, user); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		if err := s.sessions.Rename(sessionID, deriveTitle(content)); err != nil {
			return nil, err
		}
	}

	placeholder := newPlaceholder(sessionID)
	if err := s.sessions.SaveMessage(sessionID, placeholder); err != nil {
		return nil, err
	}

	history := append(slices.Clone(msgs), user)
	go s.stream(*cfg, sessionID, nil, history, placeholder, opts)
	return &user, nil
}

func (s *chatService) CancelStream(sessionID string) {
	s.mu.Lock()
	st := s.active[sessionID]
	s.mu.Unlock()
	if st != nil {
		st.cancel()
	}
}

// ResendMessage truncates the conversation through the target user
// message and streams a fresh reply against the shortened history.
func (s *chatService) ResendMessage(sessionID, messageID string) (*models.Message, error) {
	cfg, msgs, err := s.loadTurnState(sessionID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range msgs {
		if msgs[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &NotFoundError{Entity: "message", ID: messageID}
	}
	if msgs[idx].Role != models.RoleUser {
		return nil, fmt.Errorf("message %s is not a user message", messageID)
	}

	s.CancelStream(sessionID)

	history := slices.Clone(msgs[:idx+1])
	placeholder := newPlaceholder(sessionID)
	prepare := func() error {
		return s.sessions.ReplaceMessages(sessionID, history)
	}
	go s.stream(*cfg, sessionID, prepare, history, placeholder, nil)

	target := msgs[idx]
	return &target, nil
}

// RegenerateLastResponse deletes the last assistant message and replays
// the turn ending at the user message that produced it.
func (s *chatService) RegenerateLastResponse(sessionID string) error {
	cfg, msgs, err := s.loadTurnState(sessionID)
	if err != nil {
		return err
	}
	assistantIdx := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			assistantIdx = i
			break
		}
	}
	userIdx := -1
	for i := assistantIdx - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser {
			userIdx = i
			break
		}
	}
	if assistantIdx < 0 || userIdx < 0 {
		return fmt.Errorf("session %s has no assistant response to regenerate", sessionID)
	}

	s.CancelStream(sessionID)

	oldAssistantID := msgs[assistantIdx].ID
	history := slices.Clone(msgs[:userIdx+1])
	placeholder := newPlaceholder(sessionID)
	prepare := func() error {
		return s.sessions.DeleteMessage(sessionID, oldAssistantID)
	}
	go s.stream(*cfg, sessionID, prepare, history, placeholder, nil)
	return nil
}

// SwitchSessionConfig reassigns future turns without touching messages or
// UpdatedAt; recency ordering tracks conversation activity only.
func (s *chatService) SwitchSessionConfig(sessionID, configID string) error {
	sess, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return &NotFoundError{Entity: "session", ID: sessionID}
	}
	if _, err := s.configs.Get(configID); err != nil {
		return err
	}
	return s.sessions.SwitchConfig(sessionID, configID)
}

func (s *chatService) loadTurnState(sessionID string) (*models.ModelConfig, []models.Message, error) {
	sess, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, &NotFoundError{Entity: "session", ID: sessionID}
	}
	cfg, err := s.configs.Get(sess.ConfigID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := sess.Messages()
	if err != nil {
		return nil, nil, err
	}
	return cfg, msgs, nil
}

// stream runs one turn end to end. The per-session lock serializes turns
// so a second SendMessage waits for the first stream instead of orphaning
// its registry entry.
func (s *chatService) stream(cfg models.ModelConfig, sessionID string, prepare func() error, history []models.Message, placeholder models.Message, opts *models.GenerationOptions) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	base := s.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	defer cancel()

	st := &activeStream{cancel: cancel}
	st.touch()
	s.mu.Lock()
	s.active[sessionID] = st
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.active[sessionID] == st {
			delete(s.active, sessionID)
		}
		s.mu.Unlock()
	}()

	if prepare != nil {
		// The caller already returned success; a prepare failure must
		// still reach the UI as a terminal event.
		if err := prepare(); err != nil {
			s.failStream(base, sessionID, placeholder, fmt.Errorf("prepare turn: %w", err), false)
			return
		}
		if err := s.sessions.SaveMessage(sessionID, placeholder); err != nil {
			s.failStream(base, sessionID, placeholder, err, false)
			return
		}
	}

	s.emit(base, events.StreamEvent{Type: events.StreamStart, SessionID: sessionID, MessageID: placeholder.ID})

	adapter, err := s.newAdapter(s.configs.ResolveAPIKey(cfg))
	if err != nil {
		s.failStream(base, sessionID, placeholder, err, false)
		return
	}

	budget := s.tokenBudget
	if adapter.Family() == llm.FamilyPolling {
		budget = s.pollingBudget
	}
	wdStop := make(chan struct{})
	defer close(wdStop)
	go s.watchdog(ctx, st, budget, wdStop)

	// Connection setup is the only retried phase; replaying a partially
	// consumed stream would duplicate content.
	var stream llm.Stream
	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var openErr error
		stream, openErr = adapter.OpenStream(ctx, llm.ChatRequest{History: history, Options: opts})
		return openErr
	})
	if err != nil {
		s.failStream(base, sessionID, placeholder, err, st.timedOut.Load())
		return
	}
	defer stream.Close()

	var content string
	pending := 0
	cancelled := false
	for {
		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			s.failStream(base, sessionID, placeholder, recvErr, st.timedOut.Load())
			return
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		st.touch()
		if chunk.Kind == llm.Replace {
			content = chunk.Text
		} else {
			content += chunk.Text
		}
		s.emit(ctx, events.StreamEvent{
			Type:      events.StreamChunk,
			SessionID: sessionID,
			MessageID: placeholder.ID,
			Chunk:     chunk.Text,
			Content:   content,
		})
		// Checkpoint partial content so a crash loses at most this window.
		pending += len(chunk.Text)
		if pending >= checkpointEvery {
			placeholder.Content = content
			if err := s.sessions.SaveMessage(sessionID, placeholder); err != nil {
				log.Printf("chat: checkpoint session %s: %v", sessionID, err)
			}
			pending = 0
		}
	}

	if cancelled && st.timedOut.Load() {
		s.failStream(base, sessionID, placeholder, context.DeadlineExceeded, true)
		return
	}

	// Completed, or cancelled by the user: finalize what accumulated.
	placeholder.Content = content
	placeholder.IsStreaming = false
	if err := s.sessions.SaveMessage(sessionID, placeholder); err != nil {
		log.Printf("chat: finalize session %s: %v", sessionID, err)
	}
	s.emit(base, events.StreamEvent{
		Type:      events.StreamEnd,
		SessionID: sessionID,
		MessageID: placeholder.ID,
		Content:   content,
	})
}

// watchdog aborts the stream after a period of no received data. It
// watches activity, not elapsed time, so long-running image jobs survive
// as long as they keep reporting.
func (s *chatService) watchdog(ctx context.Context, st *activeStream, budget time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if st.idle() > budget {
				st.timedOut.Store(true)
				st.cancel()
				return
			}
		}
	}
}

// failStream persists the user-facing message as the assistant's final
// content; failures stay visible in history.
func (s *chatService) failStream(ctx context.Context, sessionID string, placeholder models.Message, err error, timedOut bool) {
	if timedOut {
		err = fmt.Errorf("stream idle past budget: %w", context.DeadlineExceeded)
	}
	msg := userFacingMessage(err)
	placeholder.Content = msg
	placeholder.IsStreaming = false
	// A vanished session has no row to persist into; the event alone
	// carries the failure.
	if !errors.Is(err, repositories.ErrNotFound) {
		if saveErr := s.sessions.SaveMessage(sessionID, placeholder); saveErr != nil {
			log.Printf("chat: persist failure for session %s: %v", sessionID, saveErr)
		}
	}
	s.emit(ctx, events.StreamEvent{
		Type:      events.StreamError,
		SessionID: sessionID,
		MessageID: placeholder.ID,
		Message:   msg,
	})
}

func userFacingMessage(err error) string {
	var ce *llm.ContentError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return "This conversation no longer exists."
	}
	switch retry.Classify(err).Kind {
	case retry.KindTimeout:
		return "The model stopped responding. Please try again."
	case retry.KindNetwork:
		return "Network error while contacting the model. Check your connection and try again."
	case retry.KindAuth:
		return "Authentication failed. Check the API key for this model."
	case retry.KindRateLimit:
		return "The model is rate limiting requests. Wait a moment and try again."
	case retry.KindInvalidResponse:
		return "The model returned a response that could not be understood."
	case retry.KindServerError:
		return "The model service reported an internal error. Try again later."
	default:
		return "Request failed: " + err.Error()
	}
}

func (s *chatService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func newPlaceholder(sessionID string) models.Message {
	m := models.NewMessage(sessionID, models.RoleAssistant, "")
	m.IsStreaming = true
	return m
}

func deriveTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) <= titleLimit {
		return title
	}
	return string(runes[:titleLimit]) + "..."
}
