// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/iso"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/retry"
)

type (
	// Session owns the dashboard state for one viewing: the latest reading,
	// the trailing weight history, and the goroutines keeping them current.
	Session struct {
		sampler    *Sampler
		subscriber *Subscriber
		nurseCall  *Subscriber
		thresholds Thresholds
		log        log.Logger
		recorder   Recorder

		mu        sync.RWMutex
		reading   Reading
		history   *History
		calling   bool
		connected bool
		updatedAt time.Time
		closed    bool

		watchMu  sync.Mutex
		watchers map[chan struct{}]struct{}

		lifeMu  sync.Mutex
		started bool
		cancel  context.CancelFunc
		wg      sync.WaitGroup
	}

	// SessionOptions are the resolved options for a session.
	SessionOptions struct {
		WeightKey      string
		RemainingKey   string
		Interval       time.Duration
		Capacity       int
		LabelFormat    string
		NurseCallKey   string
		Thresholds     Thresholds
		Recorder       Recorder
		SubscribeRetry retry.Policy
		Logger         *slog.Logger
	}

	// SessionOption represents a single session option.
	SessionOption interface{ session(*SessionOptions) }

	// WithWeightKey sets the key sampled into the history.
	WithWeightKey string

	// WithRemainingKey sets the key the subscriber listens on.
	WithRemainingKey string

	// WithInterval sets the sampling cadence.
	WithInterval time.Duration

	// WithCapacity sets the history capacity.
	WithCapacity int

	// WithLabelFormat sets the time layout used for history labels.
	WithLabelFormat string

	// WithNurseCallKey enables the nurse-call subscription on the given key.
	WithNurseCallKey string

	// WithThresholds sets the almost-done and done weights.
	WithThresholds Thresholds

	withRecorder       struct{ Recorder }
	withSubscribeRetry struct{ retry.Policy }
	withLogger         struct{ *slog.Logger }
)

// Defaults applied by NewSession.
const (
	DefaultWeightKey    = "infusion/current_weight"
	DefaultRemainingKey = "infusion/remaining_sec"
	DefaultNurseCallKey = "infusion/nurse_call"
	DefaultInterval     = time.Second
	DefaultCapacity     = 100
	DefaultLabelFormat  = "15:04:05"
)

var (
	// ErrInvalidOption is returned by NewSession for unusable options.
	ErrInvalidOption = errors.New("invalid session option")

	// ErrSessionStarted is returned when Start is called more than once.
	ErrSessionStarted = errors.New("session already started")

	// ErrSessionClosed is returned when Start is called after Close.
	ErrSessionClosed = errors.New("session closed")
)

// NewSession creates a session reading from store. Nothing is read until
// Start is called.
func NewSession(store Store, opts ...SessionOption) (*Session, error) {
	o := SessionOptions{
		WeightKey:    DefaultWeightKey,
		RemainingKey: DefaultRemainingKey,
		Interval:     DefaultInterval,
		Capacity:     DefaultCapacity,
		LabelFormat:  DefaultLabelFormat,
		Thresholds: Thresholds{
			AlmostDone: DefaultAlmostDoneWeight,
			Done:       DefaultDoneWeight,
		},
	}
	o.Apply(opts)

	switch {
	case store == nil:
		return nil, fmt.Errorf("%w: nil store", ErrInvalidOption)
	case o.WeightKey == "" || o.RemainingKey == "":
		return nil, fmt.Errorf("%w: empty key", ErrInvalidOption)
	case o.Interval <= 0:
		return nil, fmt.Errorf("%w: interval %v", ErrInvalidOption, o.Interval)
	case o.Capacity < 1:
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidOption, o.Capacity)
	case o.Thresholds.Done < 0 || o.Thresholds.Done > o.Thresholds.AlmostDone:
		return nil, fmt.Errorf(
			"%w: thresholds %+v",
			ErrInvalidOption,
			o.Thresholds,
		)
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.SubscribeRetry == nil {
		o.SubscribeRetry = defaultSubscribeRetry(o.Logger)
	}

	s := &Session{
		thresholds: o.Thresholds,
		log:        log.Wrap(o.Logger),
		recorder:   o.Recorder,
		history:    NewHistory(o.Capacity),
		watchers:   map[chan struct{}]struct{}{},
	}
	s.sampler = &Sampler{
		store:    store,
		key:      o.WeightKey,
		interval: o.Interval,
		layout:   o.LabelFormat,
		sink:     s,
		recorder: o.Recorder,
		log:      s.log,
	}
	s.subscriber = &Subscriber{
		store:    store,
		key:      o.RemainingKey,
		apply:    (*Subscriber).remaining,
		sink:     s,
		retry:    o.SubscribeRetry,
		recorder: o.Recorder,
		log:      s.log,
	}
	if o.NurseCallKey != "" {
		s.nurseCall = &Subscriber{
			store:    store,
			key:      o.NurseCallKey,
			apply:    (*Subscriber).nurseCall,
			sink:     s,
			retry:    o.SubscribeRetry,
			recorder: o.Recorder,
			log:      s.log,
		}
	}
	return s, nil
}

// Sampler returns the session's weight sampler.
func (s *Session) Sampler() *Sampler {
	return s.sampler
}

// Subscriber returns the session's remaining-time subscriber.
func (s *Session) Subscriber() *Subscriber {
	return s.subscriber
}

// NurseCall returns the session's nurse-call subscriber, or nil when no
// nurse-call key is configured.
func (s *Session) NurseCall() *Subscriber {
	return s.nurseCall
}

// Start launches the sampler and subscriber. They run until ctx is done or
// Close is called, whichever comes first.
func (s *Session) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.isClosed() {
		return ErrSessionClosed
	}
	if s.started {
		return ErrSessionStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.sampler.Run(ctx)
	}()
	for _, sub := range []*Subscriber{s.subscriber, s.nurseCall} {
		if sub == nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Err(ctx, err)
			}
		}()
	}
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.markClosed()
	}()

	s.log.Log(ctx, slog.LevelInfo, "session started",
		slog.Int("capacity", s.history.Cap()),
		slog.Duration("interval", s.sampler.interval),
	)
	return nil
}

// Close tears the session down. No state changes after Close returns and the
// push subscription has been released. Close is idempotent.
func (s *Session) Close() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.markClosed()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// Snapshot returns a consistent copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels, values := s.history.Series()
	status := StatusOf(s.reading, s.thresholds)
	return Snapshot{
		Reading:       s.reading,
		RemainingText: FormatRemaining(s.reading.RemainingSeconds),
		Status:        status,
		NurseCall:     s.calling,
		Alerts:        Alerts(status, s.reading, s.calling),
		Labels:        labels,
		Values:        values,
		Capacity:      s.history.Cap(),
		Connected:     s.connected,
		UpdatedAt:     iso.DateTime(s.updatedAt),
	}
}

// Watch returns a channel that receives a signal after each state change.
// Signals coalesce; receivers should call Snapshot on wake. The channel is
// closed when the session is closed or the returned function is called.
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watchers == nil {
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}

	return ch, func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}
}

// SetConnected records the transport state shown alongside the readings.
func (s *Session) SetConnected(connected bool) {
	s.mu.Lock()
	if s.closed || s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.mu.Unlock()

	s.notify()
}

func (s *Session) appendWeight(p Point) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.history.Push(p)
	s.reading.Weight = p.Value
	s.updatedAt = wallclock.Instance.Now()
	n := s.history.Len()
	s.mu.Unlock()

	s.recorder.HistoryLen(n)
	s.notify()
	return true
}

func (s *Session) setRemaining(sec float64) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.reading.RemainingSeconds = sec
	s.updatedAt = wallclock.Instance.Now()
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Session) setNurseCall(on bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	changed := s.calling != on
	s.calling = on
	if changed {
		s.updatedAt = wallclock.Instance.Now()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return true
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
}

func (s *Session) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Apply resolves the options.
func (o *SessionOptions) Apply(opts []SessionOption, rest ...SessionOption) {
	for _, opt := range opts {
		if opt != nil {
			opt.session(o)
		}
	}
	for _, opt := range rest {
		if opt != nil {
			opt.session(o)
		}
	}
}

func (o *SessionOptions) session(opt *SessionOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithWeightKey) session(opt *SessionOptions) {
	opt.WeightKey = string(o)
}

func (o WithRemainingKey) session(opt *SessionOptions) {
	opt.RemainingKey = string(o)
}

func (o WithInterval) session(opt *SessionOptions) {
	opt.Interval = time.Duration(o)
}

func (o WithCapacity) session(opt *SessionOptions) {
	opt.Capacity = int(o)
}

func (o WithLabelFormat) session(opt *SessionOptions) {
	opt.LabelFormat = string(o)
}

func (o WithNurseCallKey) session(opt *SessionOptions) {
	opt.NurseCallKey = string(o)
}

func (o WithThresholds) session(opt *SessionOptions) {
	opt.Thresholds = Thresholds(o)
}

// WithRecorder sets the observer for session activity.
func WithRecorder(recorder Recorder) SessionOption {
	return withRecorder{recorder}
}

func (o withRecorder) session(opt *SessionOptions) {
	opt.Recorder = o.Recorder
}

// WithSubscribeRetry sets the policy used to establish the push subscription.
func WithSubscribeRetry(policy retry.Policy) SessionOption {
	return withSubscribeRetry{policy}
}

func (o withSubscribeRetry) session(opt *SessionOptions) {
	opt.SubscribeRetry = o.Policy
}

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) SessionOption {
	return withLogger{logger}
}

func (o withLogger) session(opt *SessionOptions) {
	opt.Logger = o.Logger
}
