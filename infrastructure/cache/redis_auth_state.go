package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-publisher/domain/model"
)

// RedisAuthState stores pending states in Redis so callbacks can land on any
// instance behind a load balancer. GETDEL gives the atomic single-use take.
type RedisAuthState struct {
	client *redis.Client
}

func NewRedisAuthState(client *redis.Client) *RedisAuthState {
	return &RedisAuthState{client: client}
}

// NewRedisClient connects and pings; callers fall back to the in-memory store
// when this fails.
func NewRedisClient(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func stateKey(state string) string { return "oauth:state:" + state }

func (s *RedisAuthState) Issue(ctx context.Context, userID string, platform model.Platform, withPKCE bool) (string, string, error) {
	state, err := NewStateToken()
	if err != nil {
		return "", "", err
	}
	pending := model.PendingAuthState{
		UserID:    userID,
		Platform:  platform,
		CreatedAt: time.Now().UTC(),
	}
	if withPKCE {
		verifier, err := NewPKCEVerifier()
		if err != nil {
			return "", "", err
		}
		pending.PKCEVerifier = verifier
		pending.PKCEChallenge = PKCEChallengeS256(verifier)
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return "", "", err
	}
	if err := s.client.Set(ctx, stateKey(state), payload, StateTTL).Err(); err != nil {
		return "", "", fmt.Errorf("store oauth state: %w", err)
	}
	return state, pending.PKCEChallenge, nil
}

func (s *RedisAuthState) Consume(ctx context.Context, state string) (*model.PendingAuthState, error) {
	payload, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("take oauth state: %w", err)
	}
	var pending model.PendingAuthState
	if err := json.Unmarshal([]byte(payload), &pending); err != nil {
		return nil, model.ErrInvalidState
	}
	return &pending, nil
}

func (s *RedisAuthState) Close() {}
