package input

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Default BCM pin names for the navigation buttons.
const (
	DefaultForwardPin  = "GPIO17"
	DefaultBackwardPin = "GPIO27"
)

// gpioPin adapts a periph input pin. Buttons pull the line high when
// pressed; the internal pull-down holds it low otherwise.
type gpioPin struct {
	pin gpio.PinIO
}

func (g gpioPin) Read() bool {
	return g.pin.Read() == gpio.High
}

// OpenGPIO initializes the host drivers and configures the two named pins
// as pulled-down inputs.
func OpenGPIO(forwardName, backwardName string) (Pin, Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init host drivers: %w", err)
	}

	forward, err := openInput(forwardName)
	if err != nil {
		return nil, nil, err
	}
	backward, err := openInput(backwardName)
	if err != nil {
		return nil, nil, err
	}
	return forward, backward, nil
}

func openInput(name string) (Pin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure pin %s as input: %w", name, err)
	}
	return gpioPin{pin: p}, nil
}
