package store

import (
	"fmt"
	"time"

	"github.com/mwshark/shop-bot/types"
)

// PurchaseStage names the step a buyer is on inside the purchase flow.
type PurchaseStage string

const (
	StageWaitingEmail  PurchaseStage = "waiting_email"
	StageWaitingMethod PurchaseStage = "waiting_method"
)

// PurchaseSession is the short-lived per-buyer state between "plan chosen"
// and "payment link shown". It lives in redis with a TTL matching the
// providers' invoice validity windows.
type PurchaseSession struct {
	Stage         PurchaseStage     `json:"stage"`
	PlanID        int64             `json:"plan_id"`
	Action        types.OrderAction `json:"action"`
	KeyID         int64             `json:"key_id,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type RedisSessionStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisSessionStore(client *RedisClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) sessionKey(userID int64) string {
	return s.client.key("purchase", fmt.Sprintf("%d", userID))
}

func (s *RedisSessionStore) Get(userID int64) (*PurchaseSession, error) {
	var session PurchaseSession
	if err := s.client.Get(s.sessionKey(userID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisSessionStore) Set(userID int64, session *PurchaseSession) error {
	session.UpdatedAt = time.Now().UTC()
	return s.client.Set(s.sessionKey(userID), session, s.ttl)
}

func (s *RedisSessionStore) Clear(userID int64) error {
	return s.client.Del(s.sessionKey(userID))
}
