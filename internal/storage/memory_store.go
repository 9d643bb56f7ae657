package storage

import (
	"context"
	"strconv"
	"sync"

	"github.com/connectry/connectry/pkg/domain"
)

// MemoryRecordStore is an in-process CredentialRecordStore used by tests and
// local runs. Revisions are a per-store counter, bumped on every write.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	records  map[string]domain.CredentialRecord
	links    map[string]domain.IdentityLink
	revision uint64
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]domain.CredentialRecord),
		links:   make(map[string]domain.IdentityLink),
	}
}

func (s *MemoryRecordStore) GetRecord(ctx context.Context, vendorUserID string) (domain.CredentialRecord, domain.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[CredentialRecordKey(vendorUserID)]
	if !ok {
		return domain.CredentialRecord{}, "", domain.ErrRecordNotFound
	}

	return record, domain.Revision(strconv.FormatUint(s.revision, 10)), nil
}

func (s *MemoryRecordStore) PutRecord(ctx context.Context, record domain.CredentialRecord) (domain.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++
	s.records[CredentialRecordKey(record.VendorUserID)] = record

	return domain.Revision(strconv.FormatUint(s.revision, 10)), nil
}

func (s *MemoryRecordStore) DeleteRecord(ctx context.Context, vendorUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, CredentialRecordKey(vendorUserID))

	return nil
}

func (s *MemoryRecordStore) ListRecordIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for _, record := range s.records {
		ids = append(ids, record.VendorUserID)
	}

	return ids, nil
}

func (s *MemoryRecordStore) GetIdentityLink(ctx context.Context, peerVendorID string) (domain.IdentityLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[IdentityLinkKey(peerVendorID)]
	if !ok {
		return domain.IdentityLink{}, domain.ErrRecordNotFound
	}

	return link, nil
}

func (s *MemoryRecordStore) PutIdentityLink(ctx context.Context, link domain.IdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[IdentityLinkKey(link.PeerVendorID)] = link

	return nil
}

func (s *MemoryRecordStore) DeleteIdentityLink(ctx context.Context, peerVendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, IdentityLinkKey(peerVendorID))

	return nil
}
