package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
)

var _ repository.PendingPaymentStore = (*PendingPaymentStore)(nil)

const sessionIndexKey = "pending_payment:index"

// PendingPaymentStore keeps in-flight gateway sessions in Redis. Each entry
// lives under its own key with a TTL slightly past the session expiry; a set
// of tracking ids backs the sweeper's stale scan.
type PendingPaymentStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewPendingPaymentStore(client RedisClient, ttl time.Duration) *PendingPaymentStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PendingPaymentStore{client: client, ttl: ttl}
}

func (s *PendingPaymentStore) key(trackingID string) string {
	return fmt.Sprintf("pending_payment:%s", trackingID)
}

func (s *PendingPaymentStore) Put(ctx context.Context, pp *model.PendingPayment) error {
	if pp == nil || pp.TrackingID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(pp)
	if err != nil {
		return err
	}
	// Keep the key around a bit past expiry so a late callback still sees an
	// "expired" session instead of a missing one.
	if err := s.client.Set(ctx, s.key(pp.TrackingID), data, s.ttl+10*time.Minute); err != nil {
		return err
	}
	return s.client.SAdd(ctx, sessionIndexKey, pp.TrackingID)
}

func (s *PendingPaymentStore) Get(ctx context.Context, trackingID string) (*model.PendingPayment, error) {
	data, err := s.client.Get(ctx, s.key(trackingID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var pp model.PendingPayment
	if err := json.Unmarshal([]byte(data), &pp); err != nil {
		return nil, err
	}
	return &pp, nil
}

func (s *PendingPaymentStore) SetState(ctx context.Context, trackingID string, state model.PendingPaymentState) error {
	pp, err := s.Get(ctx, trackingID)
	if err != nil {
		return err
	}
	pp.State = state
	data, err := json.Marshal(pp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(trackingID), data, s.ttl+10*time.Minute); err != nil {
		return err
	}
	if state != model.PendingPaymentStatePending {
		return s.client.SRem(ctx, sessionIndexKey, trackingID)
	}
	return nil
}

func (s *PendingPaymentStore) ListStale(ctx context.Context, now time.Time, limit int) ([]*model.PendingPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.SMembers(ctx, sessionIndexKey)
	if err != nil {
		return nil, err
	}
	var out []*model.PendingPayment
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		pp, err := s.Get(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				// TTL already reaped the entry; drop it from the index.
				_ = s.client.SRem(ctx, sessionIndexKey, id)
				continue
			}
			return nil, err
		}
		if pp.State == model.PendingPaymentStatePending && now.After(pp.ExpiresAt) {
			out = append(out, pp)
		}
	}
	return out, nil
}
