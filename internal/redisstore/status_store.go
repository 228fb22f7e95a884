package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Run states recorded for sync jobs.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Job names used as status keys.
const (
	JobRollingSync     = "rolling_sync"
	JobHistoryBackfill = "history_backfill"
)

// RunStatus is the last observed state of one sync job.
type RunStatus struct {
	Job        string    `json:"job"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewClient returns a configured go-redis client and validates the connection
// with PING.
func NewClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// StatusStore keeps per-job run state so the API can report on background
// syncs. A nil client disables the store; writes become no-ops and reads
// return nothing.
type StatusStore struct {
	client *redis.Client
}

// NewStatusStore returns redis-backed store. The client may be nil.
func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client}
}

func (s *StatusStore) key(job string) string {
	return fmt.Sprintf("fleetsync:sync:%s", job)
}

// Save records job status.
func (s *StatusStore) Save(ctx context.Context, status RunStatus) error {
	if s == nil || s.client == nil {
		return nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(status.Job), data, 0).Err()
}

// Get returns the last recorded status for a job, or nil when none exists.
func (s *StatusStore) Get(ctx context.Context, job string) (*RunStatus, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	result, err := s.client.Get(ctx, s.key(job)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var status RunStatus
	if err := json.Unmarshal([]byte(result), &status); err != nil {
		return nil, err
	}
	return &status, nil
}
