package frames

import (
	"iter"
	"math"

	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/types"
)

// ConsumerStats counts what the consumer has seen.
type ConsumerStats struct {
	Accepted int64
	Rejected int64
	Hits     int64
	// Clamped counts hit frames whose payload hit the limit.
	Clamped int64
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithPayloadLimit caps the combined payload of one frame. Zero leaves
// the uint32 range as the only bound.
func WithPayloadLimit(n uint32) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.limit = n
		}
	}
}

// Consumer groups ordered interaction records into hit events.
//
// A hit event is completed when the first record of a later frame arrives
// (returned by Push) or when the stream ends (returned by Finish). The
// consumer is not safe for concurrent use.
type Consumer struct {
	grid   *grid.Grid
	policy PayloadPolicy
	limit  uint32

	last    types.InteractionRecord
	hasLast bool

	pending    HitEvent
	hasPending bool

	err   error
	stats ConsumerStats
}

// NewConsumer returns a consumer classifying records on g.
func NewConsumer(g *grid.Grid, policy PayloadPolicy, opts ...ConsumerOption) *Consumer {
	if policy == "" {
		policy = PayloadSum
	}
	c := &Consumer{grid: g, policy: policy, limit: math.MaxUint32}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push accepts the next record. When rec belongs to a later frame than the
// pending group, the completed group is returned with ok=true.
//
// Errors:
//   - *grid.OutOfRangeError: rec was skipped; the consumer remains usable
//   - *UnorderedInputError: rec precedes the previous record; the consumer
//     refuses all further input with the same error
func (c *Consumer) Push(rec types.InteractionRecord) (HitEvent, bool, error) {
	if c.err != nil {
		return HitEvent{}, false, c.err
	}

	frame, err := c.grid.HBF(rec)
	if err != nil {
		c.stats.Rejected++
		return HitEvent{}, false, err
	}

	if c.hasLast && rec.Before(c.last) {
		c.err = &UnorderedInputError{Previous: c.last, Record: rec}
		return HitEvent{}, false, c.err
	}
	c.last, c.hasLast = rec, true
	c.stats.Accepted++

	if c.hasPending && c.pending.Frame == frame {
		c.pending.Payload = c.clamp(c.policy.combine(c.pending.Payload, rec.PayloadSize))
		c.pending.Records++
		return HitEvent{}, false, nil
	}

	done, ok := c.pending, c.hasPending
	c.pending = HitEvent{Frame: frame, Records: 1}
	c.pending.Payload = c.clamp(uint64(rec.PayloadSize))
	c.hasPending = true
	if ok {
		c.stats.Hits++
	}
	return done, ok, nil
}

// clamp bounds the pending frame's payload, counting each frame once.
func (c *Consumer) clamp(size uint64) uint32 {
	if size <= uint64(c.limit) {
		return uint32(size)
	}
	if !c.pending.Clamped {
		c.pending.Clamped = true
		c.stats.Clamped++
	}
	return c.limit
}

// Finish returns the pending group, if any, and clears it.
func (c *Consumer) Finish() (HitEvent, bool) {
	if !c.hasPending {
		return HitEvent{}, false
	}
	done := c.pending
	c.pending, c.hasPending = HitEvent{}, false
	c.stats.Hits++
	return done, true
}

// Discard drops the pending group without emitting it and returns the
// number of records it held.
func (c *Consumer) Discard() int {
	if !c.hasPending {
		return 0
	}
	n := c.pending.Records
	c.pending, c.hasPending = HitEvent{}, false
	return n
}

// Err returns the fatal error that stopped the consumer, if any.
func (c *Consumer) Err() error {
	return c.err
}

// Stats returns a copy of the consumer counters.
func (c *Consumer) Stats() ConsumerStats {
	return c.stats
}

// HitEvents adapts a record sequence into a lazy hit event sequence.
// Out-of-range records are yielded as errors and skipped; an unordered
// record is yielded as an error and ends the sequence.
func HitEvents(g *grid.Grid, policy PayloadPolicy, records iter.Seq[types.InteractionRecord], opts ...ConsumerOption) iter.Seq2[HitEvent, error] {
	return func(yield func(HitEvent, error) bool) {
		c := NewConsumer(g, policy, opts...)
		for rec := range records {
			hit, ok, err := c.Push(rec)
			if err != nil {
				if !yield(HitEvent{}, err) || c.Err() != nil {
					return
				}
				continue
			}
			if ok && !yield(hit, nil) {
				return
			}
		}
		if hit, ok := c.Finish(); ok {
			yield(hit, nil)
		}
	}
}
