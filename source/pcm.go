package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/cwbudde/algo-knock/dsp/core"
	"github.com/cwbudde/algo-knock/dsp/spectrum"
)

// PCM is a Source reading signed 16-bit little-endian mono samples from a
// reader. A PCM source can be opened once.
type PCM struct {
	Processor core.ProcessorConfig
	// Hop is the number of samples consumed per frame. Zero means one
	// sixtieth of a second.
	Hop      int
	Analyser []spectrum.AnalyserOption

	r      io.Reader
	opened bool
}

// NewPCM wraps r. If r is an io.Closer it is closed with the input.
func NewPCM(r io.Reader, opts ...core.ProcessorOption) *PCM {
	return &PCM{Processor: core.ApplyProcessorOptions(opts...), r: r}
}

// Open returns the input reading from the wrapped reader.
func (p *PCM) Open(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.opened {
		return nil, fmt.Errorf("pcm stream already consumed: %w", ErrDeviceUnavailable)
	}
	in, err := newPCMInput(p.r, p.Processor, p.Hop, p.Analyser)
	if err != nil {
		return nil, err
	}
	p.opened = true
	return in, nil
}

// File is a Source that opens a raw PCM file on every Open.
type File struct {
	Path      string
	Processor core.ProcessorConfig
	Hop       int
	Analyser  []spectrum.AnalyserOption
}

// Open opens the file. Permission problems map to ErrPermissionDenied and
// missing files to ErrDeviceUnavailable.
func (f *File) Open(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fh, err := os.Open(f.Path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("open %s: %w", f.Path, ErrPermissionDenied)
	case err != nil:
		return nil, fmt.Errorf("open %s: %w: %v", f.Path, ErrDeviceUnavailable, err)
	}

	in, err := newPCMInput(fh, f.Processor, f.Hop, f.Analyser)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	return in, nil
}

type pcmInput struct {
	*analysed
	r      io.Reader
	raw    []byte
	closed atomic.Bool
}

func newPCMInput(r io.Reader, cfg core.ProcessorConfig, hop int, opts []spectrum.AnalyserOption) (*pcmInput, error) {
	if r == nil {
		return nil, fmt.Errorf("pcm reader is nil: %w", ErrDeviceUnavailable)
	}
	if hop == 0 {
		hop = defaultHop(cfg.SampleRate)
	}
	a, err := newAnalysed(cfg, hop, opts)
	if err != nil {
		return nil, err
	}
	return &pcmInput{analysed: a, r: r, raw: make([]byte, 2*hop)}, nil
}

// Frame consumes one hop of samples. A trailing partial hop is analysed
// before io.EOF is reported.
func (in *pcmInput) Frame() (spectrum.Frame, error) {
	if in.closed.Load() {
		return nil, errClosed
	}

	n, err := io.ReadFull(in.r, in.raw)
	if in.closed.Load() {
		return nil, errClosed
	}
	n &^= 1
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	samples := in.hop[:n/2]
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(in.raw[2*i:]))) / 32768
	}
	return in.frame(samples)
}

// Close may be called while Frame is blocked; closing the reader unblocks it.
func (in *pcmInput) Close() error {
	if in.closed.Swap(true) {
		return nil
	}
	if c, ok := in.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
