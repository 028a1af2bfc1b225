//go:build !linux

package regwin

import "errors"

const DefaultGPIOMemPath = "/dev/gpiomem"

type GPIOMem struct {
	Path    string
	Regions Regions
}

func (GPIOMem) Map(uint64) (Handle, error) {
	return nil, errors.New("regwin: gpiomem is only available on linux")
}
