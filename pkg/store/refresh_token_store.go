package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates the token is unknown or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates reuse of an already-rotated token.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RefreshTokenStore persists refresh tokens as rotating families. Presenting
// a superseded token is treated as theft and revokes the whole family.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
	RevokeUserRefreshTokens(userID string) error
}

type tokenFamily struct {
	userID  string
	current string
	hashes  map[string]struct{}
	expiry  time.Time
}

// MemoryRefreshTokenStore keeps families in memory, for tests and local runs.
type MemoryRefreshTokenStore struct {
	mu       sync.Mutex
	families map[string]*tokenFamily
	byHash   map[string]string
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		families: make(map[string]*tokenFamily),
		byHash:   make(map[string]string),
	}
}

func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomOpaqueToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomOpaqueToken(16)
	if err != nil {
		return "", err
	}
	hash := opaqueTokenHash(token)

	s.mu.Lock()
	s.families[familyID] = &tokenFamily{
		userID:  userID,
		current: hash,
		hashes:  map[string]struct{}{hash: {}},
		expiry:  time.Now().UTC().Add(ttl),
	}
	s.byHash[hash] = familyID
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := opaqueTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	familyID, ok := s.byHash[hash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	family, ok := s.families[familyID]
	if !ok || now.After(family.expiry) {
		s.dropFamilyLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if family.current != hash {
		s.dropFamilyLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}

	newToken, err := randomOpaqueToken(32)
	if err != nil {
		return "", "", err
	}
	newHash := opaqueTokenHash(newToken)
	family.current = newHash
	family.hashes[newHash] = struct{}{}
	family.expiry = now.Add(ttl)
	s.byHash[newHash] = familyID
	return family.userID, newToken, nil
}

func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	hash := opaqueTokenHash(token)
	s.mu.Lock()
	if familyID, ok := s.byHash[hash]; ok {
		s.dropFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	s.mu.Lock()
	for familyID, family := range s.families {
		if family.userID == userID {
			s.dropFamilyLocked(familyID)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) dropFamilyLocked(familyID string) {
	if family, ok := s.families[familyID]; ok {
		for h := range family.hashes {
			delete(s.byHash, h)
		}
	}
	delete(s.families, familyID)
}

// RedisRefreshTokenStore shares families across instances. Rotation runs
// under WATCH on the family hash so two concurrent presenters of the same
// token cannot both win.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

func NewRedisRefreshTokenStore(addr, password string) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := randomOpaqueToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomOpaqueToken(16)
	if err != nil {
		return "", err
	}
	hash := opaqueTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, rtHashKey(hash), familyID, ttl)
	pipe.HSet(ctx, rtFamilyKey(familyID), map[string]any{"user": userID, "current": hash})
	pipe.Expire(ctx, rtFamilyKey(familyID), ttl)
	pipe.SAdd(ctx, rtFamilyHashesKey(familyID), hash)
	pipe.Expire(ctx, rtFamilyHashesKey(familyID), ttl)
	pipe.SAdd(ctx, rtUserKey(userID), familyID)
	pipe.Expire(ctx, rtUserKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := opaqueTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		familyID, err := s.client.Get(ctx, rtHashKey(hash)).Result()
		if err == redis.Nil {
			return "", "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", "", err
		}

		familyKey := rtFamilyKey(familyID)
		var (
			userID   string
			newToken string
			burn     bool
		)
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			family, err := tx.HGetAll(ctx, familyKey).Result()
			if err != nil {
				return err
			}
			userID = family["user"]
			current := family["current"]
			if len(family) == 0 || userID == "" || current == "" {
				burn = true
				return ErrInvalidRefreshToken
			}
			if current != hash {
				burn = true
				return ErrRefreshTokenReplay
			}

			newToken, err = randomOpaqueToken(32)
			if err != nil {
				return err
			}
			newHash := opaqueTokenHash(newToken)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, rtHashKey(newHash), familyID, ttl)
				pipe.HSet(ctx, familyKey, map[string]any{"user": userID, "current": newHash})
				pipe.Expire(ctx, familyKey, ttl)
				pipe.SAdd(ctx, rtFamilyHashesKey(familyID), newHash)
				pipe.Expire(ctx, rtFamilyHashesKey(familyID), ttl)
				pipe.SAdd(ctx, rtUserKey(userID), familyID)
				pipe.Expire(ctx, rtUserKey(userID), ttl)
				return nil
			})
			return err
		}, familyKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if burn {
				_ = s.dropFamily(ctx, familyID, userID)
			}
			if errors.Is(err, ErrRefreshTokenReplay) || errors.Is(err, ErrInvalidRefreshToken) {
				return "", "", err
			}
			return "", "", err
		}
		return userID, newToken, nil
	}
}

func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	hash := opaqueTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyID, err := s.client.Get(ctx, rtHashKey(hash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.dropFamily(ctx, familyID, "")
}

func (s *RedisRefreshTokenStore) RevokeUserRefreshTokens(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	familyIDs, err := s.client.SMembers(ctx, rtUserKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, familyID := range familyIDs {
		if err := s.dropFamily(ctx, familyID, userID); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, rtUserKey(userID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisRefreshTokenStore) dropFamily(ctx context.Context, familyID, userID string) error {
	if userID == "" {
		family, err := s.client.HGetAll(ctx, rtFamilyKey(familyID)).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		userID = family["user"]
	}
	hashes, err := s.client.SMembers(ctx, rtFamilyHashesKey(familyID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, rtHashKey(h))
	}
	pipe.Del(ctx, rtFamilyHashesKey(familyID))
	pipe.Del(ctx, rtFamilyKey(familyID))
	if userID != "" {
		pipe.SRem(ctx, rtUserKey(userID), familyID)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func randomOpaqueToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func opaqueTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func rtHashKey(hash string) string       { return "rt:token:" + hash }
func rtFamilyKey(id string) string       { return "rt:family:" + id }
func rtFamilyHashesKey(id string) string { return "rt:family_tokens:" + id }
func rtUserKey(userID string) string     { return "rt:user:" + userID }
