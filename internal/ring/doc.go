// Package ring implements the byte ring buffers connecting the real-time
// audio callbacks to non-real-time producers and consumers.
//
// Ring is the lock-free single-producer single-consumer foundation. The
// capture and playback rings build drop-oldest and underflow accounting on
// top of it and remain safe to touch from a real-time callback: no locks,
// no allocation, no blocking. The staging ring is mutex-guarded and growable
// and must never be used from a real-time context.
package ring
