// Package input turns two push buttons into display steps.
//
// A Poller samples a forward and a backward Pin on a fixed interval. A
// pressed pin (high level) asks the coordinator to step once, then the
// poller pauses for the debounce period before sampling again. Holding a
// button repeats the step once per debounce period.
//
// Pins come from periph.io on real hardware (OpenGPIO) or from fakes in
// tests.
package input
