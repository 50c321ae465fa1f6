// internal/service/service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hintone/internal/judge"
	"hintone/internal/models"
	"hintone/internal/store"
)

// Archiver receives finished games for durable storage. Optional; a nil
// archiver disables archiving.
type Archiver interface {
	SaveGameResults(ctx context.Context, room models.Room) error
}

// Service orchestrates every player command: it loads the room, enforces
// actor/phase preconditions, consults the judge, applies the pure state
// machine, persists, and emits a change notification for broadcast.
//
// All state-mutating work for one room runs under that room's lock; distinct
// rooms proceed fully concurrently. Judge calls never run under the lock:
// commands re-validate their preconditions after reacquiring it and fail
// softly with ErrStateChanged if the room moved on without them.
type Service struct {
	store  store.RoomStore
	judge  judge.Judge
	logger *logrus.Logger

	judgeTimeout time.Duration

	// OnRoomChanged fires after each successful persist, in its own
	// goroutine, never under the room lock. Transport subscribes here.
	OnRoomChanged func(room models.Room)

	// Archive, when set, receives each FINISHED game asynchronously.
	Archive Archiver

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// New builds a Service. A nil logger gets a default one.
func New(st store.RoomStore, j judge.Judge, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		store:        st,
		judge:        j,
		logger:       logger,
		judgeTimeout: 15 * time.Second,
		roomLocks:    make(map[string]*sync.Mutex),
	}
}

// SetJudgeTimeout overrides the per-judge-call deadline.
func (s *Service) SetJudgeTimeout(d time.Duration) {
	if d > 0 {
		s.judgeTimeout = d
	}
}

// roomLock returns the mutex serializing commands for a room, creating it on
// first use. Lock entries are tiny and rooms are short-lived, so entries are
// kept for the process lifetime.
func (s *Service) roomLock(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[roomID] = l
	}
	return l
}

// loadRoom fetches a room or reports ErrRoomNotFound.
func (s *Service) loadRoom(ctx context.Context, roomID string) (models.Room, error) {
	room, ok, err := s.store.Get(ctx, roomID)
	if err != nil {
		return models.Room{}, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if !ok {
		return models.Room{}, fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}
	return room, nil
}

// justOneGame resolves the room's game, checking presence and variant tag.
func justOneGame(room models.Room) (*models.JustOneGame, error) {
	if room.Game == nil {
		return nil, ErrGameNotStarted
	}
	if room.Game.Type != models.GameTypeJustOne {
		return nil, fmt.Errorf("game type %s: %w", room.Game.Type, ErrInvalidGameType)
	}
	return room.Game, nil
}

// requireHost rejects non-host actors for host-only commands.
func requireHost(room models.Room, playerID string) error {
	host, ok := models.Host(room)
	if !ok || host.ID != playerID {
		return ErrNotHost
	}
	return nil
}

// requirePhase rejects commands issued against the wrong phase.
func requirePhase(g *models.JustOneGame, want models.Phase) error {
	if g.Phase != want {
		return fmt.Errorf("phase %s, want %s: %w", g.Phase, want, ErrInvalidPhase)
	}
	return nil
}

// persist saves the room and fires the change notification.
func (s *Service) persist(ctx context.Context, room models.Room) error {
	if err := s.store.Save(ctx, room); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	s.notify(room)
	return nil
}

func (s *Service) notify(room models.Room) {
	if s.OnRoomChanged != nil {
		go s.OnRoomChanged(room)
	}
}

// archiveFinished hands a finished game to the archiver off the command
// path.
func (s *Service) archiveFinished(room models.Room) {
	if s.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Archive.SaveGameResults(ctx, room); err != nil {
			s.logger.WithField("room", room.ID).Warnf("failed to archive game results: %v", err)
		}
	}()
}

// generateTopic asks the judge for a topic, enforcing exclusions and
// degrading to the static word list on any failure.
func (s *Service) generateTopic(ctx context.Context, exclude []string) string {
	jctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()

	topic, err := s.judge.GenerateTopic(jctx, exclude)
	if err != nil || topic == "" {
		s.logger.Warnf("topic generation failed (%v), using fallback", err)
		return judge.FallbackTopic(exclude)
	}
	for _, used := range exclude {
		if topic == used {
			s.logger.Warnf("judge returned excluded topic %q, using fallback", topic)
			return judge.FallbackTopic(exclude)
		}
	}
	return topic
}
