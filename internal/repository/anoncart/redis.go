package anoncart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"milaf-storefront/internal/domain"
)

const maxWatchRetries = 5

type redisRepo struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedis returns a guest cart store. Each write refreshes the cart TTL.
func NewRedis(client *redis.Client, ttl time.Duration) Repository {
	return &redisRepo{client: client, ttl: ttl, now: time.Now}
}

func cartKey(guestID string) string {
	return fmt.Sprintf("anoncart:%s", guestID)
}

func (r *redisRepo) Add(ctx context.Context, guestID string, item domain.AnonymousCartItem) (*domain.AnonymousCartItem, error) {
	if guestID == "" {
		return nil, domain.Invalid("guestId", "required")
	}
	key := cartKey(guestID)

	var stored domain.AnonymousCartItem
	txf := func(tx *redis.Tx) error {
		existing, err := decodeAll(tx.HGetAll(ctx, key))
		if err != nil {
			return err
		}

		stored = item
		stored.ID = ""
		for _, e := range existing {
			if e.Name == item.Name && e.UnitKind == item.UnitKind {
				stored = e
				stored.Quantity += item.Quantity
				stored.PriceCents = item.PriceCents
				break
			}
		}
		if err := domain.CheckQuantity(stored.Quantity); err != nil {
			return err
		}
		if stored.ID == "" {
			stored.ID = uuid.NewString()
			stored.AddedAt = r.now().UTC()
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, stored.ID, data)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return &stored, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("anoncart: add for guest %s: %w", guestID, domain.ErrConflict)
}

func (r *redisRepo) List(ctx context.Context, guestID string) ([]domain.AnonymousCartItem, error) {
	return decodeAll(r.client.HGetAll(ctx, cartKey(guestID)))
}

func (r *redisRepo) Remove(ctx context.Context, guestID string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	removed, err := r.client.HDel(ctx, cartKey(guestID), itemIDs...).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *redisRepo) Clear(ctx context.Context, guestID string) error {
	return r.client.Del(ctx, cartKey(guestID)).Err()
}

func decodeAll(cmd *redis.StringStringMapCmd) ([]domain.AnonymousCartItem, error) {
	raw, err := cmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	items := make([]domain.AnonymousCartItem, 0, len(raw))
	for id, data := range raw {
		var item domain.AnonymousCartItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("anoncart: decode item %s: %w", id, err)
		}
		item.ID = id
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}
