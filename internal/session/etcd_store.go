package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore persists sessions as JSON values under a key prefix. etcd Put
// replaces the whole value atomically, satisfying the replace-on-save
// contract.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

// EtcdStoreOption configures an EtcdStore.
type EtcdStoreOption func(*EtcdStore)

// WithPrefix sets the key prefix for session keys.
func WithPrefix(prefix string) EtcdStoreOption {
	return func(s *EtcdStore) { s.prefix = prefix }
}

// NewEtcdStore connects to the given etcd endpoints.
func NewEtcdStore(endpoints []string, opts ...EtcdStoreOption) (*EtcdStore, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}

	s := &EtcdStore{client: client, prefix: "tripweaver/session/"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the etcd client.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

func (s *EtcdStore) key(id string) string {
	return s.prefix + id
}

// Create allocates a session with a fresh unique ID and empty state.
func (s *EtcdStore) Create(ctx context.Context, userID string) (*Session, error) {
	sess := newSession(userID)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *EtcdStore) Get(ctx context.Context, id string) (*Session, error) {
	resp, err := s.client.Get(ctx, s.key(id))
	if err != nil {
		return nil, fmt.Errorf("etcd get session %q: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("get session %q: %w", id, ErrNotFound)
	}

	var sess Session
	if err := json.Unmarshal(resp.Kvs[0].Value, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &sess, nil
}

// Save replaces the stored session value.
func (s *EtcdStore) Save(ctx context.Context, sess *Session) error {
	sess.LastActive = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", sess.ID, err)
	}
	if _, err := s.client.Put(ctx, s.key(sess.ID), string(data)); err != nil {
		return fmt.Errorf("etcd save session %q: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session by ID.
func (s *EtcdStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Delete(ctx, s.key(id)); err != nil {
		return fmt.Errorf("etcd delete session %q: %w", id, err)
	}
	return nil
}

// PurgeExpired removes sessions idle longer than olderThan.
func (s *EtcdStore) PurgeExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("etcd list sessions: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for _, kv := range resp.Kvs {
		var sess Session
		if err := json.Unmarshal(kv.Value, &sess); err != nil {
			continue
		}
		if sess.LastActive.Before(cutoff) {
			if _, err := s.client.Delete(ctx, string(kv.Key)); err == nil {
				purged++
			}
		}
	}
	return purged, nil
}
