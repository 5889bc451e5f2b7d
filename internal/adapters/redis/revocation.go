// Package redis layers fast, Redis-backed optimizations over the Postgres
// sources of truth: refresh-token reuse detection (C9) and an in-flight
// request_id marker for the idempotent-replay UX described in spec.md §8
// Scenario E. Redis is never authoritative - an outage degrades these
// checks back to Postgres-only correctness, never to a wrong answer.
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/pkg/mredis"
)

const (
	revokedSetKey     = "gateway:revoked_jti"
	inflightKeyPrefix = "gateway:inflight:"
)

// RevocationCache marks refresh-token jtis revoked so the hot refresh path
// can usually avoid a Postgres round trip.
type RevocationCache struct {
	conn *mredis.Connection
}

// NewRevocationCache returns a RevocationCache.
func NewRevocationCache(conn *mredis.Connection) *RevocationCache {
	return &RevocationCache{conn: conn}
}

// MarkRevoked adds jti to the revoked set with a TTL slightly longer than
// the longest possible refresh-token lifetime, so the set doesn't grow
// unbounded.
func (c *RevocationCache) MarkRevoked(ctx context.Context, jti uuid.UUID, ttl time.Duration) error {
	client, err := c.conn.Client(ctx)
	if err != nil {
		// Redis is an optimization; a caller that can't reach it should fall
		// back to the Postgres check rather than fail the request.
		return err
	}

	return client.SAdd(ctx, revokedSetKey, jti.String()).Err()
}

// IsRevoked reports whether jti is known-revoked. A false negative here is
// harmless (the Postgres check still runs); a Redis error is treated as
// "unknown" by the caller, never as "not revoked".
func (c *RevocationCache) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	client, err := c.conn.Client(ctx)
	if err != nil {
		return false, err
	}

	return client.SIsMember(ctx, revokedSetKey, jti.String()).Result()
}

// InFlightMarker tracks request_ids currently being processed by the Stream
// Orchestrator, so a duplicate POST /chat observed before the ledger
// freeze-log row exists yet can still be told "already in progress" instead
// of racing a second upstream call.
type InFlightMarker struct {
	conn *mredis.Connection
}

// NewInFlightMarker returns an InFlightMarker.
func NewInFlightMarker(conn *mredis.Connection) *InFlightMarker {
	return &InFlightMarker{conn: conn}
}

// TryMark attempts to claim requestID, returning true if this caller won the
// claim. The key expires automatically so a crashed orchestrator doesn't
// wedge the request_id forever.
func (m *InFlightMarker) TryMark(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	client, err := m.conn.Client(ctx)
	if err != nil {
		return false, err
	}

	return client.SetNX(ctx, inflightKeyPrefix+requestID, "1", ttl).Result()
}

// Clear releases the in-flight claim once the orchestrator reaches a
// terminal state (DONE, REFUND, or ERROR_EMIT).
func (m *InFlightMarker) Clear(ctx context.Context, requestID string) error {
	client, err := m.conn.Client(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, inflightKeyPrefix+requestID).Err()
}
