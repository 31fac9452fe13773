//go:build !linux

package raspberry

import "fmt"

func openGpiod(name string) (GPIO, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, DriverGpiod)
}

func openGpiomem() (GPIO, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, DriverGpiomem)
}
