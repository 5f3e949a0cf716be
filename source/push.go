package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwbudde/algo-knock/dsp/spectrum"
)

// Push is a Source fed with byte frames by an external producer. Frames
// sent while no input is open are dropped.
type Push struct {
	sampleRate float64
	binCount   int

	mu    sync.Mutex
	deny  error
	frame spectrum.ByteFrame
	fresh bool
	open  bool
}

// NewPush creates a push source for frames of binCount bins at sampleRate.
func NewPush(sampleRate float64, binCount int) (*Push, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("push sample rate must be > 0: %f", sampleRate)
	}
	if binCount <= 0 {
		return nil, fmt.Errorf("push bin count must be > 0: %d", binCount)
	}
	return &Push{sampleRate: sampleRate, binCount: binCount}, nil
}

// Deny makes the next Open calls fail with err until Deny(nil).
func (p *Push) Deny(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deny = err
}

// Send stores a copy of frame as the latest frame.
func (p *Push) Send(frame []byte) error {
	if len(frame) != p.binCount {
		return fmt.Errorf("push frame must have %d bins: %d", p.binCount, len(frame))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.frame = append(p.frame[:0], frame...)
	p.fresh = true
	return nil
}

// Open returns the input. Only one input may be open at a time.
func (p *Push) Open(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deny != nil {
		return nil, p.deny
	}
	if p.open {
		return nil, fmt.Errorf("push input already open: %w", ErrDeviceUnavailable)
	}
	p.open = true
	p.fresh = false
	return &pushInput{p: p}, nil
}

type pushInput struct {
	p    *Push
	once sync.Once
}

func (in *pushInput) SampleRate() float64 { return in.p.sampleRate }
func (in *pushInput) BinCount() int       { return in.p.binCount }

// Frame returns the latest unseen frame, or nil when nothing new arrived.
func (in *pushInput) Frame() (spectrum.Frame, error) {
	p := in.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, errClosed
	}
	if !p.fresh {
		return nil, nil
	}
	p.fresh = false
	return append(spectrum.ByteFrame(nil), p.frame...), nil
}

func (in *pushInput) Close() error {
	in.once.Do(func() {
		p := in.p
		p.mu.Lock()
		p.open = false
		p.fresh = false
		p.mu.Unlock()
	})
	return nil
}
