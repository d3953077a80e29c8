// Package interrogation runs interrogation scenes as sessions. Each session
// owns one loop goroutine that ticks its scene at a fixed frame interval.
package interrogation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-interrogation/backend/internal/config"
	model "github.com/zhouzirui/z-interrogation/backend/internal/model/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/narrative"
)

var (
	ErrSubjectRequired = errors.New("subject id is required")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

// Service tracks running sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*runtime

	subjects scene.Store
	scripts  *narrative.Library
	cfg      config.SceneConfig
	newRand  func() *rand.Rand
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRandSource sets how each session's meter randomness is seeded.
func WithRandSource(fn func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = fn }
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// NewService creates a session service over the given subjects and scripts.
func NewService(subjects scene.Store, scripts *narrative.Library, cfg config.SceneConfig, opts ...Option) *Service {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = config.DefaultFrameInterval
	}
	s := &Service{
		sessions: make(map[string]*runtime),
		subjects: subjects,
		scripts:  scripts,
		cfg:      cfg,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens the subject's script and starts its scene loop.
func (s *Service) CreateSession(_ context.Context, subjectID string) (model.Session, error) {
	if subjectID == "" {
		return model.Session{}, ErrSubjectRequired
	}
	subject, ok := s.subjects.FindByID(subjectID)
	if !ok {
		return model.Session{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}

	settings, err := s.cfg.SettingsFor(subject)
	if err != nil {
		return model.Session{}, fmt.Errorf("scene settings for %s: %w", subjectID, err)
	}
	story, err := s.scripts.Open(subject.ScriptID)
	if err != nil {
		return model.Session{}, fmt.Errorf("open script for %s: %w", subjectID, err)
	}

	session := model.Session{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		CreatedAt: s.now().UTC(),
	}

	rt := newRuntime(session, s.cfg.FrameInterval, s.now)
	rt.scene = NewScene(story, SceneOptions{
		Settings:     settings,
		Anchor:       subject.Anchor(),
		MeterEnabled: s.cfg.MeterEnabled,
		Rand:         s.newRand(),
		OnLine:       rt.record,
	})
	if err := rt.scene.Start(); err != nil {
		return model.Session{}, fmt.Errorf("start scene: %w", err)
	}
	rt.publish()
	rt.start()

	s.mu.Lock()
	s.sessions[session.ID] = rt
	s.mu.Unlock()

	log.Printf("[session] created session=%s subject=%s", session.ID, subjectID)
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (model.Session, error) {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return model.Session{}, err
	}
	return rt.session, nil
}

// Frame returns the latest rendered frame.
func (s *Service) Frame(_ context.Context, sessionID string) (Frame, error) {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return Frame{}, err
	}
	return rt.latest(), nil
}

// Choose forwards a choice selection to the scene loop. Dialogue errors such
// as an out-of-range index are returned unchanged.
func (s *Service) Choose(ctx context.Context, sessionID string, index int) error {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	return rt.do(ctx, func(sc *Scene) error {
		return sc.Choose(index)
	})
}

// Skip hurries the current line or pending advance.
func (s *Service) Skip(ctx context.Context, sessionID string) (bool, error) {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}
	var skipped bool
	err = rt.do(ctx, func(sc *Scene) error {
		skipped = sc.Skip()
		return nil
	})
	return skipped, err
}

// Transcript returns the lines revealed so far.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]model.Entry, error) {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.entries(), nil
}

// Subscribe streams frames until the session closes or the returned cancel
// func is called. The current frame is delivered first.
func (s *Service) Subscribe(sessionID string) (<-chan Frame, func(), error) {
	rt, err := s.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return rt.subscribe()
}

// Close stops a session's loop and forgets it.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	rt, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return rt.stop(ctx)
}

// Shutdown stops every session.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	running := s.sessions
	s.sessions = make(map[string]*runtime)
	s.mu.Unlock()

	var errs []error
	for id, rt := range running {
		if err := rt.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) lookup(sessionID string) (*runtime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rt, nil
}
