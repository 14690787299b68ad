package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	localAnswerPrefix  = "daily-quiz-answer:"
	visitPrefix        = "visitor-counted:"
	loginAttemptPrefix = "login-attempts:"
	oauthStatePrefix   = "google-auth-state:"
)

// RedisRepo keeps the short-lived per-client keys: the guest quiz answer, the
// visit flag, failed sign-in counters and pending OAuth states.
type RedisRepo struct {
	client    *redis.Client
	answerTTL time.Duration
}

func NewRedisRepo(client *redis.Client, answerTTL time.Duration) *RedisRepo {
	return &RedisRepo{
		client:    client,
		answerTTL: answerTTL,
	}
}

func (r *RedisRepo) saveStruct(ctx context.Context, key string, model any, ttl time.Duration) error {
	val, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("error saving struct to cache: %w", err)
	}
	return nil
}

// getStruct returns false when key does not exist.
func (r *RedisRepo) getStruct(ctx context.Context, key string, model any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("error get struct in cache: %w", err)
	}
	if err := json.Unmarshal(raw, model); err != nil {
		return false, fmt.Errorf("error decoding cached struct: %w", err)
	}
	return true, nil
}

func (r *RedisRepo) GetLocalAnswer(ctx context.Context, clientID string) (*models.LocalAnswer, error) {
	var answer models.LocalAnswer
	found, err := r.getStruct(ctx, localAnswerPrefix+clientID, &answer)
	if err != nil || !found {
		return nil, err
	}
	return &answer, nil
}

func (r *RedisRepo) SaveLocalAnswer(ctx context.Context, clientID string, answer *models.LocalAnswer) error {
	return r.saveStruct(ctx, localAnswerPrefix+clientID, answer, r.answerTTL)
}

// MarkVisit reports true only the first time clientID is seen within window.
func (r *RedisRepo) MarkVisit(ctx context.Context, clientID string, window time.Duration) (bool, error) {
	first, err := r.client.SetNX(ctx, visitPrefix+clientID, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("error marking visit: %w", err)
	}
	return first, nil
}

func (r *RedisRepo) FailedAttempts(ctx context.Context, email string) (int64, error) {
	n, err := r.client.Get(ctx, loginAttemptPrefix+email).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("error reading failed attempts: %w", err)
	}
	return n, nil
}

// RecordFailedAttempt counts one failure; the counter expires window after the first one.
func (r *RedisRepo) RecordFailedAttempt(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := loginAttemptPrefix + email
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("error counting failed attempt: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return n, fmt.Errorf("error setting attempt window: %w", err)
		}
	}
	return n, nil
}

func (r *RedisRepo) ResetFailedAttempts(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, loginAttemptPrefix+email).Err(); err != nil {
		return fmt.Errorf("error resetting failed attempts: %w", err)
	}
	return nil
}

// SaveOAuthState stores state for the client id that started the flow.
func (r *RedisRepo) SaveOAuthState(ctx context.Context, state, clientID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, oauthStatePrefix+state, clientID, ttl).Err(); err != nil {
		return fmt.Errorf("error saving oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes state and reports whether it was pending for clientID.
func (r *RedisRepo) ConsumeOAuthState(ctx context.Context, state, clientID string) (bool, error) {
	if state == "" || clientID == "" {
		return false, nil
	}
	stored, err := r.client.GetDel(ctx, oauthStatePrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("error reading oauth state: %w", err)
	}
	return stored == clientID, nil
}
