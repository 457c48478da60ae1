package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/lalith-99/areachat/internal/models"
)

// PresenceRegistry tracks which company members hold at least one live
// connection. Join/Leave are reference-counted: a user with two open
// surfaces stays online until the last one closes.
type PresenceRegistry interface {
	// Join records one connection. first is true when this is the user's
	// first live connection in the company.
	Join(ctx context.Context, companyID, userID models.ID) (first bool, err error)

	// Leave records one disconnect. last is true when the user has no
	// connections left in the company.
	Leave(ctx context.Context, companyID, userID models.ID) (last bool, err error)

	// Online returns the ids of all currently-connected company members.
	Online(ctx context.Context, companyID models.ID) ([]models.ID, error)
}

// MemoryPresence is the in-process registry used in tests and when no
// Redis is configured.
type MemoryPresence struct {
	mu     sync.Mutex
	counts map[models.ID]map[models.ID]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{counts: make(map[models.ID]map[models.ID]int)}
}

func (p *MemoryPresence) Join(_ context.Context, companyID, userID models.ID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	company := p.counts[companyID]
	if company == nil {
		company = make(map[models.ID]int)
		p.counts[companyID] = company
	}
	company[userID]++
	return company[userID] == 1, nil
}

func (p *MemoryPresence) Leave(_ context.Context, companyID, userID models.ID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	company := p.counts[companyID]
	if company == nil || company[userID] == 0 {
		return false, nil
	}
	company[userID]--
	if company[userID] == 0 {
		delete(company, userID)
		return true, nil
	}
	return false, nil
}

func (p *MemoryPresence) Online(_ context.Context, companyID models.ID) ([]models.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]models.ID, 0, len(p.counts[companyID]))
	for id := range p.counts[companyID] {
		ids = append(ids, id)
	}
	return ids, nil
}

// RedisPresence keeps per-company connection counts in a Redis hash, so
// presence survives across multiple server instances. Key layout:
// presence:<companyID> -> { userID: connection count }.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func presenceKey(companyID models.ID) string {
	return "presence:" + string(companyID)
}

func (p *RedisPresence) Join(ctx context.Context, companyID, userID models.ID) (bool, error) {
	n, err := p.client.HIncrBy(ctx, presenceKey(companyID), string(userID), 1).Result()
	if err != nil {
		return false, fmt.Errorf("presence join: %w", err)
	}
	return n == 1, nil
}

func (p *RedisPresence) Leave(ctx context.Context, companyID, userID models.ID) (bool, error) {
	key := presenceKey(companyID)
	n, err := p.client.HIncrBy(ctx, key, string(userID), -1).Result()
	if err != nil {
		return false, fmt.Errorf("presence leave: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	// Count exhausted (or went negative on a stale key): drop the field.
	if err := p.client.HDel(ctx, key, string(userID)).Err(); err != nil {
		return false, fmt.Errorf("presence leave: %w", err)
	}
	return true, nil
}

func (p *RedisPresence) Online(ctx context.Context, companyID models.ID) ([]models.ID, error) {
	fields, err := p.client.HKeys(ctx, presenceKey(companyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	ids := make([]models.ID, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, models.ID(f))
	}
	return ids, nil
}
