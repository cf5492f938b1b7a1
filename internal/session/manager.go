package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/techxml"
)

// MaxSessions limits retained sessions.
const MaxSessions = 32

// SessionMaxAge is how long to keep finished sessions before cleanup.
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used.
const SessionKeepAliveWindow = 5 * time.Minute

// OpenFunc opens the document a session decodes.
type OpenFunc func() (io.ReadCloser, error)

// CompletionHook runs after a session finishes decoding successfully.
// Its error is logged but does not fail the session.
type CompletionHook func(ctx context.Context, s models.DecodeSession, t *tech.Technology) error

// FailureHook runs after a session finishes with an error.
type FailureHook func(ctx context.Context, s models.DecodeSession)

// Manager runs decode sessions in the background and keeps their results.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex

	loader *techxml.Loader
	cache  *DecodedCache
	logger *slog.Logger
	hooks  []CompletionHook
	failed []FailureHook

	maxSessions int
	maxAge      time.Duration
}

// SessionState holds the session metadata and, once complete, the decoded
// technology. The technology is shared read-only between callers.
type SessionState struct {
	Session      *models.DecodeSession
	Technology   *tech.Technology
	Digest       string
	LastAccessed time.Time
	done         chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache reuses decoded technologies across sessions with the same
// content digest.
func WithCache(c *DecodedCache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithCompletionHook registers h to run after every successful decode.
func WithCompletionHook(h CompletionHook) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, h) }
}

// WithFailureHook registers h to run after every failed decode.
func WithFailureHook(h FailureHook) Option {
	return func(m *Manager) { m.failed = append(m.failed, h) }
}

// WithLimits overrides the retained session count and age.
func WithLimits(maxSessions int, maxAge time.Duration) Option {
	return func(m *Manager) {
		m.maxSessions = maxSessions
		m.maxAge = maxAge
	}
}

// NewManager creates a session manager decoding through loader.
func NewManager(loader *techxml.Loader, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions:    make(map[string]*SessionState),
		loader:      loader,
		logger:      logger,
		maxSessions: MaxSessions,
		maxAge:      SessionMaxAge,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins decoding a stored document. digest may be empty; when it
// is set and the cache holds a technology for it, no decode happens.
func (m *Manager) Start(fileID, name, digest string, open OpenFunc) (*models.DecodeSession, error) {
	if open == nil {
		return nil, errors.New("session: nil open function")
	}
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	sess := models.NewDecodeSession(sessionID, fileID)
	sess.FileName = name
	sess.Status = models.SessionStatusDecoding
	sess.StartTime = time.Now().UnixMilli()

	state := &SessionState{
		Session:      sess,
		Digest:       digest,
		LastAccessed: time.Now(),
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	snapshot := *sess
	snapshot.Errors = nil

	m.logger.Info("decode session started", "session", shortID(sessionID), "file", fileID, "name", name)
	go m.runDecode(state, name, open)

	return &snapshot, nil
}

func (m *Manager) runDecode(state *SessionState, name string, open OpenFunc) {
	sessionID := state.Session.ID
	defer close(state.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("decode panicked", "session", shortID(sessionID), "panic", r)
			m.finishError(state, &techxml.Report{
				Title:   techxml.LoadErrorTitle,
				Message: fmt.Sprintf("decode panicked: %v", r),
			})
		}
	}()

	start := time.Now()

	if m.cache != nil && state.Digest != "" {
		if t, ok := m.cache.Get(state.Digest); ok {
			m.logger.Debug("decoded technology reused", "session", shortID(sessionID), "technology", t.Name)
			m.finishOK(state, t, start)
			return
		}
	}

	rc, err := open()
	if err != nil {
		m.finishError(state, &techxml.Report{
			Title:   techxml.LoadErrorTitle,
			Message: fmt.Sprintf("failed to open %s: %v", name, err),
			Err:     err,
		})
		return
	}
	defer rc.Close()

	t, err := m.loader.LoadReader(rc, name)
	if err != nil {
		var report *techxml.Report
		if !errors.As(err, &report) {
			report = &techxml.Report{Title: techxml.LoadErrorTitle, Message: err.Error(), Err: err}
		}
		m.finishError(state, report)
		return
	}

	if m.cache != nil && state.Digest != "" {
		m.cache.Put(state.Digest, t)
	}
	m.finishOK(state, t, start)
}

func (m *Manager) finishOK(state *SessionState, t *tech.Technology, start time.Time) {
	m.mu.Lock()
	sess := state.Session
	state.Technology = t
	sess.Status = models.SessionStatusComplete
	sess.Technology = t.Name
	sess.LayerCount = len(t.Layers())
	sess.ArcCount = len(t.Arcs)
	sess.NodeCount = len(t.Nodes)
	sess.ProcessingTimeMs = time.Since(start).Milliseconds()
	sess.EndTime = time.Now().UnixMilli()
	snapshot := *sess
	m.mu.Unlock()

	m.logger.Info("decode session complete", "session", shortID(sess.ID), "technology", t.Name,
		"elapsed", time.Since(start))

	for _, h := range m.hooks {
		if err := h(context.Background(), snapshot, t); err != nil {
			m.logger.Warn("completion hook failed", "session", shortID(sess.ID), "error", err)
		}
	}
}

func (m *Manager) finishError(state *SessionState, report *techxml.Report) {
	de := models.DecodeError{Title: report.Title, Message: report.Message}
	var sve *techxml.SchemaValidationError
	var dec *techxml.DecodeError
	switch {
	case errors.As(report.Err, &sve):
		de.Line, de.Column = sve.Line, sve.Column
	case errors.As(report.Err, &dec):
		de.Line, de.Column = dec.Line, dec.Column
	}

	m.mu.Lock()
	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, de)
	state.Session.EndTime = time.Now().UnixMilli()
	snapshot := *state.Session
	snapshot.Errors = append([]models.DecodeError(nil), state.Session.Errors...)
	m.mu.Unlock()

	m.logger.Warn("decode session failed", "session", shortID(snapshot.ID), "error", report.Message)

	for _, h := range m.failed {
		h(context.Background(), snapshot)
	}
}

// GetSession returns a snapshot of the session.
func (m *Manager) GetSession(id string) (*models.DecodeSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	snapshot.Errors = append([]models.DecodeError(nil), state.Session.Errors...)
	return &snapshot, true
}

// Technology returns the decoded technology of a complete session and
// marks the session as in use.
func (m *Manager) Technology(id string) (*tech.Technology, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok || state.Technology == nil {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state.Technology, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Wait blocks until the session finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*models.DecodeSession, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	sess, _ := m.GetSession(id)
	return sess, nil
}

// Done returns a channel closed when the session finishes.
func (m *Manager) Done(id string) (<-chan struct{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.done, true
}

// List returns snapshots of all sessions, newest first.
func (m *Manager) List() []models.DecodeSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]models.DecodeSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		list = append(list, *state.Session)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime > list[j].StartTime })
	return list
}

// Delete forgets a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// cleanupOldSessionsIfNeeded removes the least recently used finished
// sessions when the manager is at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	type candidate struct {
		id       string
		accessed time.Time
	}
	var finished []candidate
	for id, state := range m.sessions {
		if state.Session.IsTerminal() {
			finished = append(finished, candidate{id, state.LastAccessed})
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].accessed.Before(finished[j].accessed) })

	excess := len(m.sessions) - m.maxSessions + 1
	for i := 0; i < excess && i < len(finished); i++ {
		delete(m.sessions, finished[i].id)
		m.logger.Debug("evicted session", "session", shortID(finished[i].id))
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge.
// Sessions used within the keep-alive window are never removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxAge <= 0 {
		maxAge = m.maxAge
	}
	if maxAge < SessionKeepAliveWindow {
		maxAge = SessionKeepAliveWindow
	}
	now := time.Now()

	removed := 0
	for id, state := range m.sessions {
		if !state.Session.IsTerminal() {
			continue
		}
		idle := now.Sub(state.LastAccessed)
		if idle < maxAge {
			continue
		}
		delete(m.sessions, id)
		removed++
		m.logger.Debug("cleaned up session", "session", shortID(id), "idle", idle.Round(time.Second))
	}
	return removed
}

// RunCleanup calls CleanupOldSessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupOldSessions(m.maxAge); n > 0 {
				m.logger.Info("cleaned up sessions", "count", n)
			}
		}
	}
}
