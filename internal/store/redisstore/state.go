package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a login state has expired or never existed.
var ErrNotFound = errors.New("login state not found")

// LoginState is the per-login OIDC state kept between the authorize
// redirect and the callback: the PKCE verifier and where to return the user.
type LoginState struct {
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	CreatedAt    int64  `json:"created_at"`
}

// StateStore keeps short-lived OIDC login state in Redis keyed by the
// opaque state parameter.
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStateStore(addr, password string, db int) *StateStore {
	return &StateStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: 10 * time.Minute,
	}
}

func (s *StateStore) key(state string) string { return "oidc:state:" + state }

func (s *StateStore) Save(ctx context.Context, state string, st LoginState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(state), b, s.ttl).Err()
}

// Take fetches and deletes the state, so each state value is single-use.
func (s *StateStore) Take(ctx context.Context, state string) (*LoginState, error) {
	b, err := s.rdb.GetDel(ctx, s.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st LoginState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateStore) Close() error { return s.rdb.Close() }
