// Package session tracks the active sessions of each user in Redis.
// Every login creates a session; refresh and logout operate on it, and
// a user can enumerate and revoke their own sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session ID has no record, either
	// because it was revoked or because it expired.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// Session is one authenticated device/browser for a user.
type Session struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	LastSeenAt time.Time
	SourceIP   string
	UserAgent  string
}

// Store persists sessions in Redis. Each session lives under its own
// key with a TTL, and a per-user set indexes the session IDs so List
// and RemoveAll do not need to scan.
type Store struct {
	client   redis.UniversalClient
	prefix   string
	lifetime time.Duration
	now      func() time.Time
}

// NewStore builds a Store. lifetime bounds how long an untouched
// session survives.
func NewStore(client redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	if prefix == "" {
		prefix = "ag"
	}
	return &Store{client: client, prefix: prefix, lifetime: lifetime, now: time.Now}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":sess:" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":usess:" + userID
}

// Create registers a new session for userID and returns it.
func (s *Store) Create(ctx context.Context, userID, sourceIP, userAgent string) (Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	sess := Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		CreatedAt:  now,
		LastSeenAt: now,
		SourceIP:   sourceIP,
		UserAgent:  userAgent,
	}
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) save(ctx context.Context, sess Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, s.lifetime)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		pipe.Expire(ctx, s.userKey(sess.UserID), s.lifetime)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get fetches a session by ID.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	sess, err := decodeSession(data)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Has reports whether id is a live session belonging to userID.
func (s *Store) Has(ctx context.Context, userID, id string) (bool, error) {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.UserID == userID, nil
}

// Touch refreshes LastSeenAt and the TTL of a live session.
func (s *Store) Touch(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.LastSeenAt = s.now().UTC().Truncate(time.Second)
	return s.save(ctx, sess)
}

// Remove deletes one session and drops it from the user index.
func (s *Store) Remove(ctx context.Context, userID, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(id))
		pipe.SRem(ctx, s.userKey(userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RemoveAll deletes every session of userID and returns how many were
// removed.
func (s *Store) RemoveAll(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.sessionKey(id))
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return len(ids), nil
}

// RemoveAllExcept deletes every session of userID other than keepID.
// Used when a password change should sign out all other devices.
func (s *Store) RemoveAllExcept(ctx context.Context, userID, keepID string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	removed := 0
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if id == keepID {
				continue
			}
			pipe.Del(ctx, s.sessionKey(id))
			pipe.SRem(ctx, s.userKey(userID), id)
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}

// List returns the live sessions of userID, pruning index entries whose
// session key already expired.
func (s *Store) List(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sessions := make([]Session, 0, len(ids))
	var stale []string
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		args := make([]any, len(stale))
		for i, id := range stale {
			args[i] = id
		}
		if err := s.client.SRem(ctx, s.userKey(userID), args...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return sessions, nil
}
