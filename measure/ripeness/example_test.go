package ripeness_test

import (
	"fmt"

	"github.com/cwbudde/algo-knock/measure/ripeness"
)

func ExampleClassify() {
	for _, f := range []float64{120, 133, 170, 215.33} {
		c := ripeness.Classify(f)
		fmt.Printf("%.2f Hz: %s (%s)\n", f, c, c.Label())
	}
	// Output:
	// 120.00 Hz: overripe (过熟瓜)
	// 133.00 Hz: ripe (熟瓜)
	// 170.00 Hz: moderately ripe (适熟瓜)
	// 215.33 Hz: unripe (生瓜)
}
