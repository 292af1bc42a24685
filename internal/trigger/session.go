package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jsmcel/guideitor/internal/domain"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

const eventBufferSize = 32

type envelope struct {
	event Event
	reply chan *domain.ActivationDecision
}

// Session wraps a Machine behind a single-consumer event loop so that
// proximity updates and asynchronously-arriving playback signals are applied
// strictly sequentially. Callers post events and receive the emitted
// decision; subscribers additionally observe every decision as it fires.
type Session struct {
	ID        string
	TenantID  string
	CreatedAt time.Time

	machine   *Machine
	events    chan envelope
	stateReqs chan chan domain.TriggerState
	done      chan struct{}

	closeOnce sync.Once

	mu          sync.Mutex
	subscribers map[int]chan domain.ActivationDecision
	nextSubID   int
	lastEventAt time.Time

	logger *zap.Logger
}

// NewSession starts the session's event loop. Close must be called to stop it.
func NewSession(id, tenantID string, radiusMeters float64, mode domain.Mode, logger *zap.Logger) *Session {
	m := NewMachine(radiusMeters)
	if mode.Valid() {
		m.applyMode(mode)
	}

	s := &Session{
		ID:          id,
		TenantID:    tenantID,
		CreatedAt:   time.Now(),
		machine:     m,
		events:      make(chan envelope, eventBufferSize),
		stateReqs:   make(chan chan domain.TriggerState),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan domain.ActivationDecision),
		lastEventAt: time.Now(),
		logger:      logger,
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			// Drain anything already queued so posters don't block, then
			// exit; any pending landmark is simply dropped.
			for {
				select {
				case env := <-s.events:
					env.reply <- nil
				default:
					return
				}
			}
		case reply := <-s.stateReqs:
			reply <- s.machine.State()
		case env := <-s.events:
			decision := s.machine.Apply(env.event)
			env.reply <- decision
			if decision != nil {
				s.broadcast(*decision)
			}
		}
	}
}

// Post applies one event through the session's event loop and returns the
// decision it emitted, if any. Returns ErrSessionClosed after Close.
func (s *Session) Post(ctx context.Context, ev Event) (*domain.ActivationDecision, error) {
	select {
	case <-s.done:
		return nil, ErrSessionClosed
	default:
	}

	env := envelope{event: ev, reply: make(chan *domain.ActivationDecision, 1)}

	select {
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case s.events <- env:
	}

	s.mu.Lock()
	s.lastEventAt = time.Now()
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionClosed
	case d := <-env.reply:
		return d, nil
	}
}

// Subscribe registers a decision listener. The returned cancel function must
// be called when the listener goes away. Slow listeners miss decisions rather
// than stalling the event loop.
func (s *Session) Subscribe() (<-chan domain.ActivationDecision, func()) {
	ch := make(chan domain.ActivationDecision, 16)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(d domain.ActivationDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- d:
		default:
			if s.logger != nil {
				s.logger.Warn("dropping decision for slow subscriber",
					zap.String("session_id", s.ID),
					zap.Int("subscriber", id))
			}
		}
	}
}

// State returns a snapshot of the machine state, serialized through the
// event loop so it never observes a half-applied transition.
func (s *Session) State(ctx context.Context) (domain.TriggerState, error) {
	reply := make(chan domain.TriggerState, 1)

	select {
	case <-s.done:
		return domain.TriggerState{}, ErrSessionClosed
	case <-ctx.Done():
		return domain.TriggerState{}, ctx.Err()
	case s.stateReqs <- reply:
	}

	select {
	case <-ctx.Done():
		return domain.TriggerState{}, ctx.Err()
	case st := <-reply:
		return st, nil
	}
}

// IdleSince reports the time of the last posted event.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventAt
}

// Close stops the event loop and unblocks subscribers. A pending landmark
// outstanding at close time never fires.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}
