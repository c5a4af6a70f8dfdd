package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/metrics"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/superframe"
)

// statusHistorySize bounds the per-session ring of recent status records.
const statusHistorySize = 16

// EngineFactory builds a fresh superframe engine for a new session. Every
// session gets its own engine: the receive state machine is single-owner.
type EngineFactory func() (*superframe.Engine, error)

// Session is one active receive link.
type Session struct {
	ID           string
	Remote       string
	StartTime    time.Time
	LastActivity time.Time

	engine *superframe.Engine

	recentStatus []superframe.StatusRecord
	superframes  uint64
	llrsIngested uint64

	mu sync.Mutex
}

// SessionInfo is a monitoring snapshot of one session.
type SessionInfo struct {
	ID           string                    `json:"id"`
	Remote       string                    `json:"remote"`
	StartTime    time.Time                 `json:"start_time"`
	LastActivity time.Time                 `json:"last_activity"`
	Duration     time.Duration             `json:"duration"`
	Superframes  uint64                    `json:"superframes"`
	LLRsIngested uint64                    `json:"llrs_ingested"`
	Engine       superframe.EngineStats    `json:"engine"`
	RecentStatus []superframe.StatusRecord `json:"recent_status"`
}

// Manager owns all active sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	logger      *slog.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	factory     EngineFactory
	maxSessions int

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its timeout sweep.
func NewManager(logger *slog.Logger, m *metrics.Metrics, timeout time.Duration, maxSessions int, factory EngineFactory) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:    make(map[string]*Session),
		logger:      logger,
		metrics:     m,
		timeout:     timeout,
		factory:     factory,
		maxSessions: maxSessions,
		ctx:         ctx,
		cancel:      cancel,
		cleanup:     make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// GetOrCreate returns the session for a remote source, creating it on first
// contact.
func (m *Manager) GetOrCreate(remote string) (*Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[remote]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock.
	if session, exists := m.sessions[remote]; exists {
		return session, nil
	}

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.maxSessions)
	}

	engine, err := m.factory()
	if err != nil {
		return nil, fmt.Errorf("creating engine for %s: %w", remote, err)
	}

	now := time.Now()
	session = &Session{
		ID:           uuid.NewString(),
		Remote:       remote,
		StartTime:    now,
		LastActivity: now,
		engine:       engine,
	}
	m.sessions[remote] = session
	m.metrics.RecordLinkCreated()
	m.metrics.SetActiveLinks(len(m.sessions))

	m.logger.Info("Created link session",
		slog.String("session_id", session.ID),
		slog.String("remote", remote),
	)

	return session, nil
}

// Ingest feeds soft decisions from a remote source into its session.
func (m *Manager) Ingest(remote string, llrs []float64) error {
	session, err := m.GetOrCreate(remote)
	if err != nil {
		return err
	}

	session.mu.Lock()
	session.LastActivity = time.Now()
	session.llrsIngested += uint64(len(llrs))

	decoded, completed := session.engine.Push(llrs)

	for _, df := range decoded {
		m.metrics.RecordFrameDecoded(df.Kind.String(), df.Converged, df.Iterations, df.MeanLLR)
		if !df.TagValid {
			m.metrics.RecordTagFailure()
		}
	}
	for _, result := range completed {
		session.superframes++
		session.recentStatus = append(session.recentStatus, result.Status)
		if len(session.recentStatus) > statusHistorySize {
			session.recentStatus = session.recentStatus[1:]
		}
	}
	session.mu.Unlock()

	signingEnabled := session.engine.CycleLength() > superframe.PayloadFrames
	for _, result := range completed {
		m.metrics.RecordSuperframe(result.Status.SignatureValid, signingEnabled)

		m.logger.Info("Superframe completed",
			slog.String("session_id", session.ID),
			slog.String("remote", remote),
			slog.Uint64("superframe", uint64(result.Status.SuperframeCounter)),
			slog.String("message_type", result.Status.MessageType),
			slog.Bool("signature_valid", result.Status.SignatureValid),
			slog.Bool("encrypted", result.Status.Encrypted),
			slog.Bool("decrypted", result.Status.DecryptedSuccessfully),
		)
	}

	return nil
}

// Info returns a monitoring snapshot of one session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := make([]superframe.StatusRecord, len(s.recentStatus))
	copy(recent, s.recentStatus)

	return SessionInfo{
		ID:           s.ID,
		Remote:       s.Remote,
		StartTime:    s.StartTime,
		LastActivity: s.LastActivity,
		Duration:     time.Since(s.StartTime),
		Superframes:  s.superframes,
		LLRsIngested: s.llrsIngested,
		Engine:       s.engine.Stats(),
		RecentStatus: recent,
	}
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AllSessions returns monitoring snapshots for every live session.
func (m *Manager) AllSessions() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Remove drops a session, recording its lifetime.
func (m *Manager) Remove(remote string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[remote]
	if !exists {
		return false
	}
	delete(m.sessions, remote)

	m.metrics.RecordLinkDestroyed(time.Since(session.StartTime).Seconds())
	m.metrics.SetActiveLinks(len(m.sessions))

	m.logger.Info("Removed link session",
		slog.String("session_id", session.ID),
		slog.String("remote", remote),
		slog.Duration("duration", time.Since(session.StartTime)),
	)

	return true
}

// Stop shuts the manager down and waits for the cleanup sweep to exit.
func (m *Manager) Stop() {
	m.logger.Info("Stopping link manager...")
	m.cancel()
	<-m.cleanup

	m.logger.Info("Link manager stopped",
		slog.Int("remaining_sessions", m.ActiveCount()),
	)
}

// startCleanupRoutine sweeps idle sessions on a fixed interval.
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Link cleanup routine started",
		slog.Duration("timeout", m.timeout),
	)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions idle past the timeout.
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()
	var expired []string

	m.mu.RLock()
	for remote, session := range m.sessions {
		session.mu.Lock()
		idle := now.Sub(session.LastActivity)
		session.mu.Unlock()
		if idle > m.timeout {
			expired = append(expired, remote)
		}
	}
	m.mu.RUnlock()

	for _, remote := range expired {
		m.Remove(remote)
	}
}
