package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cwbudde/algo-knock/session"
)

type reporter struct {
	w           io.Writer
	header      bool
	lastVerdict float64
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w, lastVerdict: -1}
}

// row prints one status line and any verdict not printed yet.
func (r *reporter) row(ro session.Readout) {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	if !r.header {
		fmt.Fprintf(tw, "Time [s]\tState\tPeak [Hz]\tLevel [dB]\tClass\tHistory\tStatus\n")
		fmt.Fprintf(tw, "--------\t-----\t---------\t----------\t-----\t-------\t------\n")
		r.header = true
	}

	t, freq, amp, label := "-", "-", "-", "-"
	if ro.HasPeak {
		t = fmt.Sprintf("%.2f", ro.Peak.Timestamp)
		freq = fmt.Sprintf("%.1f", ro.Peak.Frequency)
		amp = fmt.Sprintf("%.1f", ro.Peak.Amplitude)
		label = ro.Label()
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", t, ro.State, freq, amp, label, len(ro.History), ro.Status)
	_ = tw.Flush()

	if v := ro.Verdict; v != nil && v.End != r.lastVerdict {
		r.lastVerdict = v.End
		fmt.Fprintf(r.w, "verdict at %.2f s (%d frames): %s\n", v.End, v.Frames, v)
	}
}

// summary prints aggregate statistics of the retained history.
func (r *reporter) summary(ro session.Readout) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	s := ro.Summary
	fmt.Fprintf(tw, "\nSamples\tMean [Hz]\tStd dev [Hz]\tRange [Hz]\tMean level [dB]\tClass\n")
	fmt.Fprintf(tw, "-------\t---------\t------------\t----------\t---------------\t-----\n")
	if !s.HasSamples {
		fmt.Fprintf(tw, "0\t-\t-\t-\t-\t-\n")
	} else {
		fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%.1f-%.1f\t%.1f\t%s (%s)\n",
			s.Count, s.MeanHz, s.StdDevHz, s.MinHz, s.MaxHz, s.MeanAmpDB, s.Category.Label(), s.Category)
	}
	return tw.Flush()
}
