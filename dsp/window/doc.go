// Package window generates the analysis windows applied to a frame before
// the transform.
package window
