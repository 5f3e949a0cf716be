package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cwbudde/algo-knock/dsp/peak"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
	"github.com/cwbudde/algo-knock/internal/testutil"
	"github.com/cwbudde/algo-knock/internal/timeutil"
	"github.com/cwbudde/algo-knock/measure/history"
	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/source"
)

const (
	testRate = 44100.0
	testBins = 1024
	tick     = 100 * time.Millisecond
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeInput serves queued frames, then returns end (or nil frames if end
// is nil).
type fakeInput struct {
	mu     sync.Mutex
	frames []spectrum.Frame
	end    error
	reads  int
	closes int
}

func (f *fakeInput) SampleRate() float64 { return testRate }
func (f *fakeInput) BinCount() int       { return testBins }

func (f *fakeInput) Frame() (spectrum.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.frames) == 0 {
		return nil, f.end
	}
	fr := f.frames[0]
	f.frames = f.frames[1:]
	return fr, nil
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeInput) counts() (reads, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.closes
}

// fakeSource hands out a new fakeInput per Open.
type fakeSource struct {
	mu       sync.Mutex
	newInput func() *fakeInput
	inputs   []*fakeInput
}

func (s *fakeSource) Open(context.Context) (source.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.newInput()
	s.inputs = append(s.inputs, in)
	return in, nil
}

func (s *fakeSource) input(i int) *fakeInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[i]
}

func knockFrame(bin int, level byte) spectrum.Frame {
	return spectrum.ByteFrame(testutil.ByteSpectrum(testBins, 0, map[int]byte{bin: level}))
}

func repeat(f spectrum.Frame, n int) []spectrum.Frame {
	out := make([]spectrum.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = tick
	cfg.MinUpdateInterval = 0.05
	cfg.Tap.Enabled = false
	return cfg
}

func newTestSession(t *testing.T, src source.Source, cfg Config) (*Session, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	s := New(src,
		WithClock(clock),
		WithConfig(cfg),
		WithLogger(zaptest.NewLogger(t)),
	)
	t.Cleanup(func() { _ = s.Stop() })
	return s, clock
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// step advances the clock by one tick and waits until the loop has read
// the resulting frame.
func step(t *testing.T, clock *timeutil.MockClock, in *fakeInput) {
	t.Helper()
	reads, _ := in.counts()
	clock.Advance(tick)
	eventually(t, fmt.Sprintf("read %d", reads+1), func() bool {
		r, _ := in.counts()
		return r > reads
	})
}

func TestStopTwiceIsIdle(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{frames: repeat(knockFrame(7, 200), 5)} }}
	s, clock := newTestSession(t, src, testConfig())

	for i := 0; i < 2; i++ {
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop() on idle #%d error = %v", i, err)
		}
		if s.State() != StateIdle || len(s.Readout().History) != 0 {
			t.Fatalf("idle stop #%d: state=%v history=%d", i, s.State(), len(s.Readout().History))
		}
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in := src.input(0)
	step(t, clock, in)
	eventually(t, "history", func() bool { return len(s.Readout().History) == 1 })

	for i := 0; i < 2; i++ {
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop() #%d error = %v", i, err)
		}
		r := s.Readout()
		if r.State != StateIdle || len(r.History) != 0 || r.Status != StatusStopped {
			t.Fatalf("after stop #%d: %+v", i, r)
		}
	}
	if _, closes := in.counts(); closes != 1 {
		t.Fatalf("closes = %d, want 1", closes)
	}
}

func TestStartThenStopReleasesOnce(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{} }}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	<-s.Done()

	in := src.input(0)
	reads, closes := in.counts()
	if closes != 1 || reads != 0 {
		t.Fatalf("reads=%d closes=%d, want 0 and 1", reads, closes)
	}
	if clock.Tickers() != 0 {
		t.Fatalf("live tickers = %d after stop", clock.Tickers())
	}

	// No tick runs after Stop has returned.
	clock.Advance(tick)
	time.Sleep(10 * time.Millisecond)
	if reads, _ := in.counts(); reads != 0 {
		t.Fatalf("reads = %d after stop", reads)
	}
}

func TestPermissionDenied(t *testing.T) {
	partial := &fakeInput{}
	src := source.Func(func(context.Context) (source.Input, error) {
		return partial, fmt.Errorf("getUserMedia: %w", source.ErrPermissionDenied)
	})
	s, clock := newTestSession(t, src, testConfig())

	err := s.Start(context.Background())
	if !errors.Is(err, source.ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	r := s.Readout()
	if r.State != StateIdle {
		t.Fatalf("state = %v, want idle", r.State)
	}
	if !strings.HasPrefix(r.Status, "cannot access microphone: ") {
		t.Fatalf("status = %q", r.Status)
	}
	if _, closes := partial.counts(); closes != 1 {
		t.Fatalf("partial input closes = %d, want 1", closes)
	}
	if clock.Tickers() != 0 {
		t.Fatal("a failed start must not create a ticker")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed when nothing runs")
	}
}

func TestUnusableInputFormat(t *testing.T) {
	bad := &zeroInput{}
	src := source.Func(func(context.Context) (source.Input, error) { return bad, nil })
	s, _ := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); !errors.Is(err, source.ErrDeviceUnavailable) {
		t.Fatalf("Start() error = %v, want ErrDeviceUnavailable", err)
	}
	if !bad.closed {
		t.Fatal("unusable input must be closed")
	}
}

type zeroInput struct{ closed bool }

func (*zeroInput) SampleRate() float64            { return 0 }
func (*zeroInput) BinCount() int                  { return 0 }
func (*zeroInput) Frame() (spectrum.Frame, error) { return nil, io.EOF }

func (z *zeroInput) Close() error {
	z.closed = true
	return nil
}

func TestTicksBuildHistory(t *testing.T) {
	// 150.7, 172.3 and 193.8 Hz.
	frames := []spectrum.Frame{
		knockFrame(7, 200),
		knockFrame(8, 210),
		knockFrame(9, 220),
	}
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{frames: frames} }}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in := src.input(0)
	for i := 0; i < 3; i++ {
		step(t, clock, in)
		want := i + 1
		eventually(t, "tick", func() bool { return s.Readout().Ticks == want })
	}

	r := s.Readout()
	if r.State != StateAcquiring || r.SessionID == "" {
		t.Fatalf("readout = %+v", r)
	}
	if len(r.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(r.History))
	}
	for i, smp := range r.History {
		testutil.RequireNear(t, "timestamp", smp.Timestamp, 0.1*float64(i+1), 1e-9)
	}
	if !r.HasPeak || r.Peak.Bin != 9 || r.Category != ripeness.Unripe || r.Label() != "生瓜" {
		t.Fatalf("latest = %+v category=%v", r.Peak, r.Category)
	}
	if !r.Summary.HasSamples || r.Summary.Count != 3 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	testutil.RequireNear(t, "mean", r.Summary.MeanHz, spectrumFreq(8), 1e-9)
}

func spectrumFreq(bin int) float64 {
	return spectrum.BinFrequency(bin, testRate, testBins)
}

func TestSilentTickNotRecorded(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput {
		return &fakeInput{frames: []spectrum.Frame{knockFrame(7, 0), knockFrame(7, 0)}}
	}}
	cfg := testConfig()
	s, clock := newTestSession(t, src, cfg)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in := src.input(0)
	step(t, clock, in)
	eventually(t, "tick", func() bool { return s.Readout().Ticks == 1 })
	if r := s.Readout(); r.HasPeak || len(r.History) != 0 || r.Label() != "" {
		t.Fatalf("silent frame recorded: %+v", r)
	}

	cfg.MissPolicy = peak.MissFloor
	s.SetConfig(cfg)
	step(t, clock, in)
	eventually(t, "tick", func() bool { return s.Readout().Ticks == 2 })
	r := s.Readout()
	if len(r.History) != 1 || !r.History[0].IsFloor() {
		t.Fatalf("history = %+v, want one floor sample", r.History)
	}
	if r.Summary.HasSamples {
		t.Fatal("floor samples must not count in the summary")
	}
}

func TestNilFrameSkipsTick(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{} }}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	step(t, clock, src.input(0))
	if r := s.Readout(); r.Ticks != 0 || r.State != StateAcquiring {
		t.Fatalf("readout = %+v", r)
	}
}

func TestEndOfInput(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput {
		return &fakeInput{frames: []spectrum.Frame{knockFrame(7, 200)}, end: io.EOF}
	}}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := s.Done()
	in := src.input(0)
	step(t, clock, in)
	step(t, clock, in)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquisition did not end at end of input")
	}

	r := s.Readout()
	if r.State != StateIdle || r.Status != StatusEnded {
		t.Fatalf("state=%v status=%q", r.State, r.Status)
	}
	if len(r.History) != 1 {
		t.Fatalf("history len = %d, want 1 kept for the final readout", len(r.History))
	}
	if _, closes := in.counts(); closes != 1 {
		t.Fatalf("closes = %d, want 1", closes)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if r := s.Readout(); len(r.History) != 0 || r.SessionID == "" {
		t.Fatalf("restart must begin with empty history: %+v", r)
	}
}

func TestInputReleasedBeforeIdle(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{end: io.EOF} }}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in := src.input(0)
	clock.Advance(tick)
	eventually(t, "idle", func() bool { return s.State() == StateIdle })

	if _, closes := in.counts(); closes != 1 {
		t.Fatalf("closes = %d when idle was reported, want 1", closes)
	}
}

// stalledPCM returns a PCM source over a pipe that is never written.
func stalledPCM(t *testing.T) (*source.PCM, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	return source.NewPCM(pr), pw
}

func TestStopUnblocksStalledReader(t *testing.T) {
	src, pw := stalledPCM(t)
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.Advance(tick)
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the reader was stalled")
	}

	if r := s.Readout(); r.State != StateIdle || r.Status != StatusStopped {
		t.Fatalf("state=%v status=%q", r.State, r.Status)
	}
	if _, err := pw.Write([]byte{0, 0}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("write after stop error = %v, want closed pipe", err)
	}
}

func TestCancelUnblocksStalledReader(t *testing.T) {
	src, _ := stalledPCM(t)
	s, clock := newTestSession(t, src, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := s.Done()
	clock.Advance(tick)
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquisition did not end after cancel while the reader was stalled")
	}
	if r := s.Readout(); r.State != StateIdle || r.Status != StatusStopped {
		t.Fatalf("state=%v status=%q", r.State, r.Status)
	}
}

func TestInputErrorEndsAcquisition(t *testing.T) {
	boom := errors.New("device unplugged")
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{end: boom} }}
	core, logs := observer.New(zapcore.ErrorLevel)
	clock := timeutil.NewMockClock(epoch)
	s := New(src, WithClock(clock), WithConfig(testConfig()), WithLogger(zap.New(core)))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := s.Done()
	clock.Advance(tick)
	<-done

	if got := s.Readout().Status; got != "input error: device unplugged" {
		t.Fatalf("status = %q", got)
	}
	if logs.FilterMessage("acquisition failed").Len() != 1 {
		t.Fatalf("logs = %v", logs.All())
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() after failure error = %v", err)
	}
}

func TestContextCancelEndsAcquisition(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{} }}
	s, _ := newTestSession(t, src, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := s.Done()
	cancel()
	<-done

	if r := s.Readout(); r.State != StateIdle || r.Status != StatusStopped {
		t.Fatalf("readout = %+v", r)
	}
	if _, closes := src.input(0).counts(); closes != 1 {
		t.Fatalf("closes = %d", closes)
	}
}

func TestStartWhileAcquiringRestarts(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{frames: repeat(knockFrame(7, 200), 5)} }}
	s, clock := newTestSession(t, src, testConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := s.Readout().SessionID
	step(t, clock, src.input(0))
	eventually(t, "tick", func() bool { return s.Readout().Ticks == 1 })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	r := s.Readout()
	if r.SessionID == first || len(r.History) != 0 || r.State != StateAcquiring {
		t.Fatalf("restart readout = %+v", r)
	}
	if _, closes := src.input(0).counts(); closes != 1 {
		t.Fatalf("first input closes = %d, want 1", closes)
	}
	if clock.Tickers() != 1 {
		t.Fatalf("live tickers = %d, want 1", clock.Tickers())
	}
}

func TestToggle(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{} }}
	s, _ := newTestSession(t, src, testConfig())

	if err := s.Toggle(context.Background()); err != nil || s.State() != StateAcquiring {
		t.Fatalf("first toggle: %v, %v", err, s.State())
	}
	if err := s.Toggle(context.Background()); err != nil || s.State() != StateIdle {
		t.Fatalf("second toggle: %v, %v", err, s.State())
	}
	if StateAcquiring.String() != "acquiring" || State(5).String() != "State(5)" {
		t.Fatal("state names")
	}
}

func TestSetConfigClampsNegativeInterval(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(&fakeSource{newInput: func() *fakeInput { return &fakeInput{} }}, WithLogger(zap.New(core)))

	cfg := DefaultConfig()
	cfg.MinUpdateInterval = -1
	s.SetConfig(cfg)

	if got := s.Config().MinUpdateInterval; got != 0 {
		t.Fatalf("MinUpdateInterval = %v, want 0", got)
	}
	entries := logs.FilterField(zap.String("field", "MinUpdateInterval")).All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("warn entries = %v", logs.All())
	}
}

func TestSetConfigAppliesLive(t *testing.T) {
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{frames: repeat(knockFrame(7, 200), 10)} }}
	s, clock := newTestSession(t, src, testConfig())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in := src.input(0)
	for i := 0; i < 4; i++ {
		step(t, clock, in)
		want := i + 1
		eventually(t, "tick", func() bool { return s.Readout().Ticks == want })
	}

	cfg := testConfig()
	cfg.HistoryPolicy = history.FrameCount
	cfg.DisplayFrames = 2
	cfg.MinFreq, cfg.MaxFreq = 200, 400
	cfg.TickInterval = 2 * tick
	s.SetConfig(cfg)

	if n := len(s.Readout().History); n != 2 {
		t.Fatalf("history len = %d after shrinking the bound", n)
	}

	// The old period no longer fires.
	reads, _ := in.counts()
	clock.Advance(tick)
	time.Sleep(10 * time.Millisecond)
	if r, _ := in.counts(); r != reads {
		t.Fatal("tick fired at the old period")
	}
	clock.Advance(tick)
	eventually(t, "tick at new period", func() bool { return s.Readout().Ticks == 5 })

	if r := s.Readout(); r.HasPeak {
		t.Fatalf("150 Hz peak must fall outside the new band: %+v", r.Peak)
	}
}

func TestTapVerdict(t *testing.T) {
	// Below the trigger, then a knock at 0.2 s recorded until 0.4 s.
	frames := []spectrum.Frame{
		knockFrame(7, 50),
		knockFrame(7, 200),
		knockFrame(9, 150),
		knockFrame(7, 10),
	}
	src := &fakeSource{newInput: func() *fakeInput { return &fakeInput{frames: frames} }}
	cfg := testConfig()
	cfg.Tap = TapConfig{Enabled: true, TriggerDB: DefaultConfig().Tap.TriggerDB, Duration: 0.15}
	s, clock := newTestSession(t, src, cfg)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := s.Readout().Status; got != StatusWaiting {
		t.Fatalf("status = %q", got)
	}

	in := src.input(0)
	step(t, clock, in)
	step(t, clock, in)
	eventually(t, "trigger", func() bool { return s.Readout().Status == StatusRecording })
	step(t, clock, in)
	step(t, clock, in)
	eventually(t, "verdict", func() bool { return s.Readout().Verdict != nil })

	r := s.Readout()
	v := r.Verdict
	if !v.Found || v.Peak.Bin != 7 || v.Category != ripeness.Ripe || v.Frames != 3 {
		t.Fatalf("verdict = %+v", v)
	}
	if r.Status != v.String() {
		t.Fatalf("status = %q, want %q", r.Status, v.String())
	}
	if len(v.Levels) != testBins {
		t.Fatalf("verdict levels = %d", len(v.Levels))
	}

	v.Levels[0] = 42
	if s.Readout().Verdict.Levels[0] == 42 {
		t.Fatal("readout verdict shares memory with the session")
	}
}

func TestSynthSourceEndToEnd(t *testing.T) {
	s, clock := newTestSession(t, source.NewSynth(150), testConfig())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		clock.Advance(tick)
		want := i + 1
		eventually(t, "tick", func() bool { return s.Readout().Ticks == want })
	}

	r := s.Readout()
	if !r.HasPeak || r.Category != ripeness.Ripe {
		t.Fatalf("peak = %+v category = %v", r.Peak, r.Category)
	}
}
