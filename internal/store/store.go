// internal/store/store.go
package store

import (
	"context"
	"sync"

	"hintone/internal/models"
)

// RoomStore is the persistence boundary for rooms. Get returns ok=false for
// unknown ids; Save overwrites unconditionally. Implementations must be safe
// for concurrent use, but callers are responsible for read-modify-write
// atomicity (the service serializes per room).
type RoomStore interface {
	Get(ctx context.Context, roomID string) (models.Room, bool, error)
	Save(ctx context.Context, room models.Room) error
	Delete(ctx context.Context, roomID string) error
	Exists(ctx context.Context, roomID string) (bool, error)
}

// MemoryStore keeps rooms in a process-local map. The default store.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]models.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]models.Room),
	}
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (models.Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, room models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok, nil
}
