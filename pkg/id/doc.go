// Package id provides a 128-bit, lexicographically sortable identifier
// used for websocket client ids and generated node ids.
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence],
// so byte-wise comparison preserves chronological order and ids generated
// within the same millisecond remain strictly increasing by sequence.
//
// The Generator ensures per-process monotonicity: if the system clock
// regresses it pins to the last seen millisecond and increments the
// sequence, and if the sequence would overflow within a millisecond it
// waits for the next millisecond before emitting the next ID.
//
// Usage
//
//	g := id.NewGenerator()
//	clientID := g.Next().String()
package id
