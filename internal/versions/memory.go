package versions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
)

type memoryEntry struct {
	snapshot models.BaseContract
	info     models.VersionInfo
}

// MemoryStore is a process-local Store for tests and offline tools.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]map[int]memoryEntry
	highWater map[string]int
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]map[int]memoryEntry),
		highWater: make(map[string]int),
		now:       time.Now,
	}
}

func (s *MemoryStore) NextVersionID(_ context.Context, contractID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	top := s.highWater[contractID]
	for v := range s.entries[contractID] {
		top = max(top, v)
	}
	return top + 1, nil
}

func (s *MemoryStore) Save(_ context.Context, contractID string, version int, snapshot models.BaseContract) error {
	info, err := Describe(contractID, version, snapshot, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.entries[contractID]
	if !ok {
		byVersion = make(map[int]memoryEntry)
		s.entries[contractID] = byVersion
	}
	if _, exists := byVersion[version]; exists {
		return apperr.Conflictf("contract %s version %d already exists", contractID, version)
	}
	byVersion[version] = memoryEntry{snapshot: snapshot.Clone(), info: info}
	s.highWater[contractID] = max(s.highWater[contractID], version)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, contractID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := 0
	for v := range s.entries[contractID] {
		latest = max(latest, v)
	}
	if latest == 0 {
		return 0, apperr.NotFoundf("contract %s has no versions", contractID)
	}
	return latest, nil
}

func (s *MemoryStore) Load(_ context.Context, contractID string, version int) (*models.BaseContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[contractID][version]
	if !ok {
		return nil, apperr.NotFoundf("contract %s version %d", contractID, version)
	}
	snap := e.snapshot.Clone()
	return &snap, nil
}

func (s *MemoryStore) List(_ context.Context, contractID string) ([]models.VersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VersionInfo, 0, len(s.entries[contractID]))
	for _, e := range s.entries[contractID] {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Delete removes one snapshot, as an operator cleaning up storage would.
// The high-water mark is kept.
func (s *MemoryStore) Delete(_ context.Context, contractID string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[contractID], version)
}
