// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package streamout

import "sync/atomic"

// QueryResult is the counter pair of one stream.
type QueryResult struct {
	Generated uint64
	Written   uint64
}

// Query accumulates primitives generated and written per stream.
// The zero value is ready to use.
type Query struct {
	generated [MaxStreams]atomic.Uint64
	written   [MaxStreams]atomic.Uint64
}

// Add accumulates the counts of one reservation.
func (q *Query) Add(r Reservation) {
	for s := range MaxStreams {
		if r.Generated[s] != 0 {
			q.generated[s].Add(uint64(r.Generated[s]))
		}
		if r.Emit[s] != 0 {
			q.written[s].Add(uint64(r.Emit[s]))
		}
	}
}

// AddGenerated accumulates primitives generated on a stream that has no
// buffers bound.
func (q *Query) AddGenerated(stream int, n uint32) {
	q.generated[stream].Add(uint64(n))
}

// Result returns the counters of stream.
func (q *Query) Result(stream int) QueryResult {
	return QueryResult{
		Generated: q.generated[stream].Load(),
		Written:   q.written[stream].Load(),
	}
}

// Reset zeroes all counters.
func (q *Query) Reset() {
	for s := range MaxStreams {
		q.generated[s].Store(0)
		q.written[s].Store(0)
	}
}
