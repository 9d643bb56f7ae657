package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/connectry/connectry/pkg/domain"

	"github.com/redis/go-redis/v9"
)

// RedisRecordStore persists credential records as JSON strings in Redis.
// Each record carries a companion revision key bumped with INCR on every
// write; the revision is an opaque tag, not a compare-and-swap primitive.
type RedisRecordStore struct {
	client redis.UniversalClient
}

func NewRedisRecordStore(client redis.UniversalClient) *RedisRecordStore {
	return &RedisRecordStore{
		client: client,
	}
}

func revisionKey(recordKey string) string {
	return recordKey + ":rev"
}

func (s *RedisRecordStore) GetRecord(ctx context.Context, vendorUserID string) (domain.CredentialRecord, domain.Revision, error) {
	key := CredentialRecordKey(vendorUserID)

	payload, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CredentialRecord{}, "", domain.ErrRecordNotFound
		}
		return domain.CredentialRecord{}, "", fmt.Errorf("failed to get credential record: %w", err)
	}

	var record domain.CredentialRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return domain.CredentialRecord{}, "", fmt.Errorf("failed to unmarshal credential record: %w", err)
	}

	revision, err := s.client.Get(ctx, revisionKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.CredentialRecord{}, "", fmt.Errorf("failed to get record revision: %w", err)
	}

	return record, domain.Revision(revision), nil
}

func (s *RedisRecordStore) PutRecord(ctx context.Context, record domain.CredentialRecord) (domain.Revision, error) {
	key := CredentialRecordKey(record.VendorUserID)

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	revisionCmd := pipe.Incr(ctx, revisionKey(key))

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to put credential record: %w", err)
	}

	return domain.Revision(strconv.FormatInt(revisionCmd.Val(), 10)), nil
}

func (s *RedisRecordStore) DeleteRecord(ctx context.Context, vendorUserID string) error {
	key := CredentialRecordKey(vendorUserID)

	if err := s.client.Del(ctx, key, revisionKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential record: %w", err)
	}

	return nil
}

func (s *RedisRecordStore) ListRecordIDs(ctx context.Context) ([]string, error) {
	var ids []string

	iter := s.client.Scan(ctx, 0, credentialKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) <= len(credentialKeyPrefix) {
			continue
		}
		id := key[len(credentialKeyPrefix):]
		if len(id) > 4 && id[len(id)-4:] == ":rev" {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan credential records: %w", err)
	}

	return ids, nil
}

func (s *RedisRecordStore) GetIdentityLink(ctx context.Context, peerVendorID string) (domain.IdentityLink, error) {
	payload, err := s.client.Get(ctx, IdentityLinkKey(peerVendorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IdentityLink{}, domain.ErrRecordNotFound
		}
		return domain.IdentityLink{}, fmt.Errorf("failed to get identity link: %w", err)
	}

	var link domain.IdentityLink
	if err := json.Unmarshal([]byte(payload), &link); err != nil {
		return domain.IdentityLink{}, fmt.Errorf("failed to unmarshal identity link: %w", err)
	}

	return link, nil
}

func (s *RedisRecordStore) PutIdentityLink(ctx context.Context, link domain.IdentityLink) error {
	payload, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal identity link: %w", err)
	}

	if err := s.client.Set(ctx, IdentityLinkKey(link.PeerVendorID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to put identity link: %w", err)
	}

	return nil
}

func (s *RedisRecordStore) DeleteIdentityLink(ctx context.Context, peerVendorID string) error {
	if err := s.client.Del(ctx, IdentityLinkKey(peerVendorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete identity link: %w", err)
	}

	return nil
}
