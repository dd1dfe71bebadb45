// Package scan turns a stream of biometric probes into auto-scan attendance
// events.
//
// A Session owns one frame source, one Gate and a read-only Gallery. Each
// iteration scores at most one probe, so a slow scorer slows the sampling
// rate instead of building a queue. Several sessions may scan the same site
// at once; they share nothing, and the attendance store is what keeps their
// events from racing.
package scan
