package window

import (
	"errors"
	"fmt"
)

var errMismatchedLength = errors.New("samples and coefficients must have same length")

func errUnknownWindow(name string) error {
	return fmt.Errorf("unsupported window: %q", name)
}
