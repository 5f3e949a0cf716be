package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/internal/timeutil"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/measure/tap"
	"github.com/cwbudde/algo-knock/source"
)

// Status messages shown to the user.
const (
	StatusIdle      = "press start to begin detection"
	StatusWaiting   = "waiting for a knock..."
	StatusListening = "listening..."
	StatusRecording = "detecting, please wait..."
	StatusStopped   = "detection stopped"
	StatusEnded     = "end of input"
)

// State is the acquisition state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock driving ticks and timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithConfig sets the initial configuration. It is sanitised like
// SetConfig.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// run is one acquisition.
type run struct {
	id     string
	in     source.Input
	ticker timeutil.Ticker
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (r *run) release() {
	r.closeOnce.Do(func() {
		r.closeErr = r.in.Close()
	})
}

// Session owns one acquisition at a time.
type Session struct {
	src   source.Source
	log   *zap.Logger
	clock timeutil.Clock

	// lifecycle serialises Start, Stop and Toggle.
	lifecycle sync.Mutex

	mu      sync.Mutex
	cfg     Config
	state   State
	status  string
	cur     *run
	last    *run
	id      string
	started time.Time
	rate    float64
	bins    int
	ticks   int

	extractor *peak.Extractor
	hist      *history.Buffer
	recorder  *tap.Recorder
	latest    peak.Sample
	hasLatest bool
	verdict   *tap.Verdict
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New creates an idle session reading from src.
func New(src source.Source, opts ...Option) *Session {
	s := &Session{
		src:    src,
		log:    zap.NewNop(),
		clock:  timeutil.RealClock{},
		cfg:    DefaultConfig(),
		status: StatusIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	cfg, adjusted := s.cfg.Sanitize()
	s.warnAdjusted(adjusted)
	s.cfg = cfg
	s.extractor = peak.New()
	s.extractor.Configure(cfg.peakConfig())
	s.hist = history.New(cfg.historyConfig())
	s.recorder = tap.New(cfg.tapConfig())

	return s
}

// State returns the acquisition state. Once an acquisition has ended on
// its own the input is already released when State reports StateIdle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the active configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Done returns a channel closed when the latest acquisition has ended and
// its input has been released. It is already closed when no acquisition
// was ever started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return closedDone
	}
	return s.last.done
}

// Start begins a new acquisition, stopping the running one first. The
// acquisition ends when Stop is called, ctx is cancelled, or the input
// fails. If the source cannot be opened the session stays idle and the
// error wraps the source error.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.start(ctx)
}

// Stop ends the running acquisition, waits for its loop to exit and
// clears the history. It returns the error from releasing the input, if
// any. Stop on an idle session only clears the history.
func (s *Session) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.stop()
}

// Toggle starts an idle session and stops an acquiring one.
func (s *Session) Toggle(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateAcquiring {
		return s.stop()
	}
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	if err := s.stop(); err != nil {
		s.log.Warn("release previous input", zap.Error(err))
	}

	in, err := s.src.Open(ctx)
	if err == nil && (in == nil || !(in.SampleRate() > 0) || in.BinCount() <= 0) {
		err = fmt.Errorf("input reports no usable format: %w", source.ErrDeviceUnavailable)
	}
	if err != nil {
		if in != nil {
			if cerr := in.Close(); cerr != nil {
				s.log.Warn("release partial input", zap.Error(cerr))
			}
		}
		s.mu.Lock()
		s.status = "cannot access microphone: " + err.Error()
		s.mu.Unlock()
		s.log.Error("start acquisition", zap.Error(err))
		return fmt.Errorf("session start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.NewString(),
		in:     in,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	context.AfterFunc(runCtx, r.release)

	s.mu.Lock()
	r.ticker = s.clock.NewTicker(s.cfg.TickInterval)
	s.cur = r
	s.last = r
	s.state = StateAcquiring
	s.id = r.id
	s.started = s.clock.Now()
	s.rate = in.SampleRate()
	s.bins = in.BinCount()
	s.ticks = 0
	s.hist = history.New(s.cfg.historyConfig())
	s.recorder.Reset()
	s.hasLatest = false
	s.verdict = nil
	if s.cfg.Tap.Enabled {
		s.status = StatusWaiting
	} else {
		s.status = StatusListening
	}
	s.mu.Unlock()

	s.log.Info("acquisition started",
		zap.String("session_id", r.id),
		zap.Float64("sample_rate", in.SampleRate()),
		zap.Int("bins", in.BinCount()),
	)

	go s.loop(r)
	return nil
}

func (s *Session) stop() error {
	s.mu.Lock()
	r := s.cur
	s.cur = nil
	s.state = StateIdle
	s.hist.Clear()
	s.recorder.Reset()
	s.hasLatest = false
	s.verdict = nil
	s.ticks = 0
	s.status = StatusStopped
	s.mu.Unlock()

	if r == nil {
		return nil
	}
	r.cancel()
	// Closing the input unblocks a Frame call stuck on a stalled reader.
	r.release()
	<-r.done

	s.log.Info("acquisition stopped", zap.String("session_id", r.id))
	return r.closeErr
}

func (s *Session) loop(r *run) {
	defer close(r.done)
	defer r.release()
	defer r.cancel()
	defer r.ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			s.end(r, r.ctx.Err())
			return
		case <-r.ticker.C():
		}
		if r.ctx.Err() != nil {
			s.end(r, r.ctx.Err())
			return
		}

		frame, err := r.in.Frame()
		if err != nil {
			if cerr := r.ctx.Err(); cerr != nil {
				err = cerr
			}
			s.end(r, err)
			return
		}
		if frame == nil {
			continue
		}

		s.mu.Lock()
		if r.ctx.Err() != nil || s.cur != r {
			s.mu.Unlock()
			return
		}
		s.tick(frame)
		s.mu.Unlock()
	}
}

// end moves the session to idle after the loop of r stopped on its own.
// It is a no-op when r was already replaced or stopped.
func (s *Session) end(r *run, cause error) {
	r.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != r {
		return
	}
	s.cur = nil
	s.state = StateIdle
	s.recorder.Reset()

	switch {
	case errors.Is(cause, io.EOF):
		s.status = StatusEnded
		s.log.Info("acquisition ended", zap.String("session_id", r.id))
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		s.status = StatusStopped
		s.log.Info("acquisition cancelled", zap.String("session_id", r.id), zap.Error(cause))
	default:
		s.status = "input error: " + cause.Error()
		s.log.Error("acquisition failed", zap.String("session_id", r.id), zap.Error(cause))
	}
}

// tick processes one frame. s.mu is held.
func (s *Session) tick(frame spectrum.Frame) {
	ts := s.clock.Since(s.started).Seconds()
	s.ticks++

	sample, ok := s.extractor.Extract(frame, s.rate, ts)
	s.latest, s.hasLatest = sample, ok
	if !ok {
		sample, ok = s.cfg.MissPolicy.Fill(ts, core.MinDB)
	}
	if ok {
		s.hist.Add(sample)
	}
	s.hist.Prune(ts)

	if !s.cfg.Tap.Enabled {
		return
	}
	before := s.recorder.State()
	v, done := s.recorder.Observe(frame, s.extractor, s.rate, ts)
	switch {
	case done:
		s.verdict = &v
		s.status = v.String()
		fields := []zap.Field{
			zap.String("session_id", s.id),
			zap.Bool("found", v.Found),
			zap.Int("frames", v.Frames),
		}
		if v.Found {
			fields = append(fields,
				zap.Float64("freq_hz", v.Peak.Frequency),
				zap.Float64("amp_db", v.Peak.Amplitude),
				zap.Stringer("category", v.Category),
			)
		}
		s.log.Info("tap verdict", fields...)
	case before == tap.Waiting && s.recorder.State() == tap.Recording:
		s.status = StatusRecording
		s.log.Debug("tap triggered", zap.String("session_id", s.id), zap.Float64("ts", ts))
	}
}

// SetConfig sanitises cfg and applies it immediately, including to a
// running acquisition.
func (s *Session) SetConfig(cfg Config) {
	cfg, adjusted := cfg.Sanitize()
	s.warnAdjusted(adjusted)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	s.cfg = cfg
	s.extractor.Configure(cfg.peakConfig())
	s.hist.Configure(cfg.historyConfig())
	s.recorder.Configure(cfg.tapConfig())
	if !cfg.Tap.Enabled && prev.Tap.Enabled {
		s.recorder.Reset()
	}
	if s.cur != nil && cfg.TickInterval != prev.TickInterval {
		s.cur.ticker.Reset(cfg.TickInterval)
	}
}

func (s *Session) warnAdjusted(fields []string) {
	for _, f := range fields {
		s.log.Warn("config value out of range, clamped", zap.String("field", f))
	}
}

// Readout returns a snapshot for rendering.
func (s *Session) Readout() Readout {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Readout{
		State:      s.state,
		Status:     s.status,
		SessionID:  s.id,
		SampleRate: s.rate,
		BinCount:   s.bins,
		Ticks:      s.ticks,
		History:    s.hist.Snapshot(),
		Summary:    s.hist.Summary(),
		Tap:        s.recorder.State(),
	}
	if s.hasLatest {
		r.Peak = s.latest
		r.HasPeak = true
		r.Category = ripeness.Classify(s.latest.Frequency)
	}
	if s.verdict != nil {
		v := *s.verdict
		v.Levels = append([]float64(nil), v.Levels...)
		r.Verdict = &v
	}
	return r
}
