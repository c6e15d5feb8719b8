// Package display renders sensor records on a two-line character display.
//
// A Sink receives both lines in a single Write call and shows them
// together; sinks never expose a state where only one line has been
// replaced. Sinks:
//   - Console: prints "[LCD] line1 | line2" to a writer (development, tests)
//   - LCD: HD44780 controller behind a PCF8574 I2C backpack
//   - Nop: discards output (no display, or display init failed)
package display
