// Package listener accepts sensor payloads over TCP.
//
// Each inbound connection carries one plain-text payload
// ("temp,humidity,lux,level,ir") and is closed after it is read. A
// connection is handled in its own goroutine, bounded by MaxConnections;
// connections beyond the bound are closed without being read. No response
// is ever written.
package listener
