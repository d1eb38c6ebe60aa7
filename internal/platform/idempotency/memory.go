package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultEntries bounds the number of keys remembered by a MemoryStore.
const DefaultEntries = 1024

// MemoryStore keeps records in a bounded LRU whose entries expire after the TTL. A restart forgets
// every key, which is acceptable for duplicate-submit protection.
type MemoryStore struct {
	mu      sync.Mutex
	records *expirable.LRU[string, Record]
}

// NewMemoryStore constructs a store holding at most size keys for ttl each.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = DefaultEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{records: expirable.NewLRU[string, Record](size, nil, ttl)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := storeKey(key)
	record, ok := s.records.Get(id)
	if !ok {
		record = Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now.UTC(),
		}
		s.records.Add(id, record)
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

// SaveResponse implements Store.
func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := storeKey(key)
	record, ok := s.records.Get(id)
	if ok && record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok {
		record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now.UTC()}
	}

	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = sanitizeHeaders(resp.Headers)
	record.ResponseBody = append([]byte(nil), resp.Body...)
	s.records.Add(id, record)
	return nil
}

// Release forgets the reservation so a later attempt may retry.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := storeKey(key)
	if record, ok := s.records.Peek(id); ok && record.Fingerprint == fingerprint {
		s.records.Remove(id)
	}
	return nil
}

// Len reports the number of remembered keys.
func (s *MemoryStore) Len() int {
	return s.records.Len()
}
