// Package ratelimit implements the fixed-window attempt limiter shared by
// login, OTP verification, and recovery verification.
//
// A window is one counter per (action, identifier) key: created lazily on the
// first check, reset whenever the window rolls over, otherwise incremented in
// place. Denied checks keep incrementing so the escalation severity of the
// associated security event can climb while an attacker hammers a locked
// identifier. Fixed (not sliding) windows mean bursts exactly at window
// boundaries can exceed the nominal rate; that is an accepted trade-off for
// O(1) state per identifier.
//
// State lives behind the Store interface. MemoryStore suits a single
// process; RedisStore shares windows across server instances, which is what
// makes the limit an actual security control rather than client-side UX
// throttling.
package ratelimit
