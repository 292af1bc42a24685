package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/proximity"
	"github.com/jsmcel/guideitor/internal/tenant"
	"github.com/jsmcel/guideitor/internal/trigger"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMode     = errors.New("mode must be auto or manual")
)

const (
	defaultJanitorInterval = 1 * time.Minute
	defaultIdleTimeout     = 30 * time.Minute
)

// SessionInfo is the externally visible description of a trigger session.
type SessionInfo struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Mode         domain.Mode `json:"mode"`
	RadiusMeters float64     `json:"radius_meters"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SessionService owns the live trigger sessions for all tenants. Sessions
// that stop receiving events are reaped by a background janitor.
type SessionService struct {
	registry  *tenant.Registry
	analytics domain.AnalyticsStore
	logger    *zap.Logger

	defaultRadius float64
	idleTimeout   time.Duration
	interval      time.Duration

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type sessionEntry struct {
	session      *trigger.Session
	mode         domain.Mode
	radiusMeters float64
}

func NewSessionService(registry *tenant.Registry, analytics domain.AnalyticsStore, defaultRadius float64, logger *zap.Logger) *SessionService {
	return &SessionService{
		registry:      registry,
		analytics:     analytics,
		logger:        logger,
		defaultRadius: defaultRadius,
		idleTimeout:   defaultIdleTimeout,
		interval:      defaultJanitorInterval,
		sessions:      make(map[string]*sessionEntry),
		stopCh:        make(chan struct{}),
	}
}

func (s *SessionService) SetIdleTimeout(d time.Duration) {
	s.idleTimeout = d
}

func (s *SessionService) SetJanitorInterval(d time.Duration) {
	s.interval = d
}

// Create starts a new trigger session for a tenant.
func (s *SessionService) Create(ctx context.Context, tenantID string, mode domain.Mode) (*SessionInfo, error) {
	t, err := s.registry.Get(tenantID)
	if err != nil {
		return nil, ErrTenantUnknown
	}
	if mode == "" {
		mode = domain.ModeAuto
	}
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	radius := t.TriggerRadiusMeters
	if radius <= 0 {
		radius = s.defaultRadius
	}

	id := uuid.New().String()
	sess := trigger.NewSession(id, tenantID, radius, mode, s.logger)

	s.mu.Lock()
	s.sessions[id] = &sessionEntry{session: sess, mode: mode, radiusMeters: radius}
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("tenant_id", tenantID),
		zap.String("mode", string(mode)),
		zap.Float64("radius_meters", radius))

	return &SessionInfo{
		ID:           id,
		TenantID:     tenantID,
		Mode:         mode,
		RadiusMeters: radius,
		CreatedAt:    sess.CreatedAt,
	}, nil
}

func (s *SessionService) Get(id string) (*trigger.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.session, nil
}

// Close stops a session's event loop and forgets it.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	entry.session.Close()
	return nil
}

// PostLocation feeds a GPS fix to a session. The nearest catalog landmark is
// computed here so the trigger machine only ever sees proximity samples.
func (s *SessionService) PostLocation(ctx context.Context, id string, coords domain.Coordinates) (*domain.ActivationDecision, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	landmarks, err := s.registry.Landmarks(sess.TenantID)
	if err != nil && !errors.Is(err, tenant.ErrNoCoordinates) {
		return nil, s.mapRegistryErr(err)
	}

	sample := proximity.Nearest(coords, landmarks)
	decision, err := sess.Post(ctx, trigger.ProximityUpdate{Sample: sample})
	if err != nil {
		return nil, s.mapSessionErr(err)
	}
	if decision != nil {
		distance := 0.0
		if sample != nil {
			distance = sample.DistanceMeters
		}
		s.recordActivation(sess, decision, distance)
	}
	return decision, nil
}

// PostPlayback reports that audio playback started or stopped.
func (s *SessionService) PostPlayback(ctx context.Context, id string, isPlaying bool) (*domain.ActivationDecision, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	decision, err := sess.Post(ctx, trigger.PlaybackChanged{IsPlaying: isPlaying})
	if err != nil {
		return nil, s.mapSessionErr(err)
	}
	if decision != nil {
		s.recordActivation(sess, decision, 0)
	}
	return decision, nil
}

// PostMode switches a session between automatic and manual triggering.
func (s *SessionService) PostMode(ctx context.Context, id string, mode domain.Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := sess.Post(ctx, trigger.ModeChanged{Mode: mode}); err != nil {
		return s.mapSessionErr(err)
	}
	return nil
}

// PostSelect activates a catalog landmark the user picked by hand.
func (s *SessionService) PostSelect(ctx context.Context, id, landmarkID string) (*domain.ActivationDecision, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	landmarks, err := s.registry.Landmarks(sess.TenantID)
	if err != nil {
		return nil, s.mapRegistryErr(err)
	}
	var selected *domain.Landmark
	for i := range landmarks {
		if landmarks[i].ID == landmarkID {
			selected = &landmarks[i]
			break
		}
	}
	if selected == nil {
		return nil, ErrLandmarkNotFound
	}
	decision, err := sess.Post(ctx, trigger.ManualSelect{Landmark: *selected})
	if err != nil {
		return nil, s.mapSessionErr(err)
	}
	if decision != nil {
		s.recordActivation(sess, decision, 0)
	}
	return decision, nil
}

func (s *SessionService) State(ctx context.Context, id string) (domain.TriggerState, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.TriggerState{}, err
	}
	state, err := sess.State(ctx)
	if err != nil {
		return domain.TriggerState{}, s.mapSessionErr(err)
	}
	return state, nil
}

// Subscribe returns a live decision feed for a session. The returned cancel
// function must be called when the consumer goes away.
func (s *SessionService) Subscribe(id string) (<-chan domain.ActivationDecision, func(), error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.Subscribe()
	return ch, cancel, nil
}

// Start runs the idle session janitor in a background goroutine.
func (s *SessionService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("session janitor started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				s.reapIdle()
			case <-s.stopCh:
				s.logger.Info("session janitor stopped")
				return
			}
		}
	}()
}

// Stop halts the janitor and closes every live session.
func (s *SessionService) Stop() {
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.session.Close()
	}
}

func (s *SessionService) reapIdle() {
	cutoff := time.Now().Add(-s.idleTimeout)

	s.mu.Lock()
	var idle []*sessionEntry
	for id, entry := range s.sessions {
		if entry.session.IdleSince().Before(cutoff) {
			idle = append(idle, entry)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range idle {
		s.logger.Info("reaping idle session",
			zap.String("session_id", entry.session.ID),
			zap.String("tenant_id", entry.session.TenantID))
		entry.session.Close()
	}
}

func (s *SessionService) recordActivation(sess *trigger.Session, decision *domain.ActivationDecision, distance float64) {
	activationDecisions.WithLabelValues(sess.TenantID, string(decision.Kind)).Inc()
	if s.analytics == nil {
		return
	}
	event := &domain.ActivationEvent{
		TenantID:       sess.TenantID,
		SessionID:      sess.ID,
		Kind:           decision.Kind,
		DistanceMeters: distance,
		UserSelected:   decision.UserSelected,
	}
	if decision.Landmark != nil {
		event.LandmarkID = decision.Landmark.ID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analytics.RecordActivation(ctx, event); err != nil {
			s.logger.Warn("failed to record activation event",
				zap.String("session_id", event.SessionID), zap.Error(err))
		}
	}()
}

func (s *SessionService) mapRegistryErr(err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return ErrTenantUnknown
	case errors.Is(err, tenant.ErrNoCoordinates):
		return ErrNoCatalog
	default:
		return err
	}
}

func (s *SessionService) mapSessionErr(err error) error {
	if errors.Is(err, trigger.ErrSessionClosed) {
		return ErrSessionNotFound
	}
	return err
}
