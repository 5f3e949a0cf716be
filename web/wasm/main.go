//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/cwbudde/algo-knock/internal/webdemo"
)

var (
	engine *webdemo.Engine
	funcs  []js.Func
)

func main() {
	api := js.Global().Get("Object").New()
	api.Set("init", export(func(args []js.Value) any {
		sr := 44100.0
		bins := 1024
		if len(args) > 0 {
			sr = args[0].Float()
		}
		if len(args) > 1 {
			bins = args[1].Int()
		}
		if engine != nil {
			_ = engine.Stop()
		}
		e, err := webdemo.NewEngine(sr, bins)
		if err != nil {
			return err.Error()
		}
		engine = e
		return js.Null()
	}))

	api.Set("start", export(func(args []js.Value) any {
		if engine == nil {
			return "engine not initialised"
		}
		if err := engine.Start(); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("stop", export(func(args []js.Value) any {
		if engine == nil {
			return js.Null()
		}
		if err := engine.Stop(); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("toggle", export(func(args []js.Value) any {
		if engine == nil {
			return "engine not initialised"
		}
		if err := engine.Toggle(); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("deny", export(func(args []js.Value) any {
		if engine == nil {
			return js.Null()
		}
		reason := ""
		if len(args) > 0 {
			reason = args[0].String()
		}
		engine.Deny(reason)
		return js.Null()
	}))

	api.Set("pushFrame", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		buf := make([]byte, args[0].Length())
		js.CopyBytesToGo(buf, args[0])
		if err := engine.PushFrame(buf); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("pushSamples", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		input := args[0]
		buf := make([]float64, input.Length())
		for i := range buf {
			buf[i] = input.Index(i).Float()
		}
		if err := engine.PushSamples(buf); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("setConfig", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		p := args[0]
		err := engine.SetConfig(webdemo.ConfigParams{
			MinFreq:           p.Get("minFreq").Float(),
			MaxFreq:           p.Get("maxFreq").Float(),
			ThresholdDB:       p.Get("thresholdDb").Float(),
			MinUpdateInterval: p.Get("minUpdateInterval").Float(),
			Policy:            p.Get("policy").String(),
			RetentionWindow:   p.Get("retentionWindow").Float(),
			DisplayFrames:     p.Get("displayFrames").Int(),
			Miss:              p.Get("miss").String(),
			TickMS:            p.Get("tickMs").Float(),
			TapEnabled:        p.Get("tapEnabled").Bool(),
			TapDuration:       p.Get("tapDuration").Float(),
		})
		if err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("setSpectrum", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		p := args[0]
		err := engine.SetSpectrum(webdemo.SpectrumParams{
			Smoothing: p.Get("smoothing").Float(),
			Window:    p.Get("window").String(),
			MinDB:     p.Get("minDb").Float(),
			MaxDB:     p.Get("maxDb").Float(),
		})
		if err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("readout", export(func(args []js.Value) any {
		if engine == nil {
			return js.Null()
		}
		return readoutObject(engine)
	}))

	api.Set("verdictCurve", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Global().Get("Float32Array").New(0)
		}
		input := args[0]
		freqs := make([]float64, input.Length())
		for i := range freqs {
			freqs[i] = input.Index(i).Float()
		}
		curve := engine.VerdictCurveDB(freqs)
		arr := js.Global().Get("Float32Array").New(len(curve))
		for i := range curve {
			arr.SetIndex(i, curve[i])
		}
		return arr
	}))

	js.Global().Set("AlgoKnockDemo", api)
	select {}
}

func readoutObject(e *webdemo.Engine) js.Value {
	r := e.Readout()
	obj := js.Global().Get("Object").New()
	obj.Set("state", e.StateName())
	obj.Set("status", r.Status)
	obj.Set("sessionId", r.SessionID)
	obj.Set("label", r.Label())

	if r.HasPeak {
		obj.Set("freq", r.Peak.Frequency)
		obj.Set("amp", r.Peak.Amplitude)
	} else {
		obj.Set("freq", js.Null())
		obj.Set("amp", js.Null())
	}

	n := len(r.History)
	ts := js.Global().Get("Float64Array").New(n)
	freqs := js.Global().Get("Float64Array").New(n)
	amps := js.Global().Get("Float64Array").New(n)
	for i, s := range r.History {
		ts.SetIndex(i, s.Timestamp)
		freqs.SetIndex(i, s.Frequency)
		amps.SetIndex(i, s.Amplitude)
	}
	hist := js.Global().Get("Object").New()
	hist.Set("t", ts)
	hist.Set("freq", freqs)
	hist.Set("amp", amps)
	obj.Set("history", hist)

	if r.Summary.HasSamples {
		sum := js.Global().Get("Object").New()
		sum.Set("count", r.Summary.Count)
		sum.Set("meanHz", r.Summary.MeanHz)
		sum.Set("stdDevHz", r.Summary.StdDevHz)
		sum.Set("minHz", r.Summary.MinHz)
		sum.Set("maxHz", r.Summary.MaxHz)
		sum.Set("label", r.Summary.Category.Label())
		obj.Set("summary", sum)
	}

	if v := r.Verdict; v != nil {
		verdict := js.Global().Get("Object").New()
		verdict.Set("found", v.Found)
		verdict.Set("text", v.String())
		if v.Found {
			verdict.Set("freq", v.Peak.Frequency)
			verdict.Set("amp", v.Peak.Amplitude)
			verdict.Set("label", v.Category.Label())
		}
		obj.Set("verdict", verdict)
	}
	return obj
}

func export(fn func([]js.Value) any) js.Func {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		return fn(args)
	})
	funcs = append(funcs, f)
	return f
}
