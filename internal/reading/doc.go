// Package reading provides the sensor data types shared by every sensord
// package, together with the plain-text wire codec used by sensor clients.
//
// This package contains types and codecs only. All other internal packages
// import reading; reading imports nothing internal.
//
// Key design constraints:
//   - Record values are immutable once the store has assigned an ID
//   - IDs are assigned by the store, never by callers
//   - A Reading is only persisted after Validate succeeds
//   - JSON tags use snake_case
package reading
