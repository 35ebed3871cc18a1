package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. Records are stored as JSON so
// callers never share slices with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string][]byte
	interactions map[string][]Interaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[string][]byte),
		interactions: make(map[string][]Interaction),
	}
}

func (s *MemoryStore) Save(_ context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", r.SessionID, err)
	}

	s.mu.Lock()
	s.records[r.SessionID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Record, error) {
	s.mu.RLock()
	data, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return decodeRecord(data)
}

func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, data := range s.records {
		r, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		if r.UserID == userID {
			out = append(out, r)
		}
	}

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveInteraction(_ context.Context, i Interaction) error {
	s.mu.Lock()
	s.interactions[i.SessionID] = append(s.interactions[i.SessionID], i)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Interactions(_ context.Context, sessionID string) ([]Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Interaction, len(s.interactions[sessionID]))
	copy(out, s.interactions[sessionID])
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode session: %w", err)
	}
	return r, nil
}

// sortNewestFirst orders by timestamp, breaking ties on session id.
func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].SessionID > records[j].SessionID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
