// internal/service/service_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hintone/internal/judge"
	"hintone/internal/models"
	"hintone/internal/store"
)

// stubJudge is a configurable in-test judge. The zero value approves
// everything and generates sequential topics.
type stubJudge struct {
	mu         sync.Mutex
	topicCount int

	fixedTopic string
	topicErr   error

	formatValid   bool
	formatSet     bool
	formatErr     error
	againstValid  bool
	againstSet    bool
	againstErr    error
	hintVerdicts  []judge.HintVerdict
	hintsErr      error
	answerVerdict *judge.AnswerVerdict
	answerErr     error
}

func (s *stubJudge) GenerateTopic(ctx context.Context, exclude []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topicErr != nil {
		return "", s.topicErr
	}
	if s.fixedTopic != "" {
		return s.fixedTopic, nil
	}
	s.topicCount++
	return fmt.Sprintf("topic-%d", s.topicCount), nil
}

func (s *stubJudge) ValidateHintFormat(ctx context.Context, hint string) (judge.Validation, error) {
	if s.formatErr != nil {
		return judge.Validation{}, s.formatErr
	}
	if s.formatSet {
		return judge.Validation{IsValid: s.formatValid, Error: "not a single word"}, nil
	}
	return judge.Validation{IsValid: true}, nil
}

func (s *stubJudge) ValidateHintAgainstTopic(ctx context.Context, topic, hint string) (judge.Validation, error) {
	if s.againstErr != nil {
		return judge.Validation{}, s.againstErr
	}
	if s.againstSet {
		return judge.Validation{IsValid: s.againstValid, Error: "too close to the topic"}, nil
	}
	return judge.Validation{IsValid: true}, nil
}

func (s *stubJudge) JudgeHints(ctx context.Context, topic string, hints []models.Hint) ([]judge.HintVerdict, error) {
	if s.hintsErr != nil {
		return nil, s.hintsErr
	}
	return s.hintVerdicts, nil
}

func (s *stubJudge) JudgeAnswer(ctx context.Context, topic, answer string) (judge.AnswerVerdict, error) {
	if s.answerErr != nil {
		return judge.AnswerVerdict{}, s.answerErr
	}
	if s.answerVerdict != nil {
		return *s.answerVerdict, nil
	}
	return judge.AnswerVerdict{IsCorrect: judge.NormalizedMatch(topic, answer)}, nil
}

// stubArchiver records archived rooms on a channel so tests can wait for the
// async hand-off.
type stubArchiver struct {
	saved chan models.Room
}

func (a *stubArchiver) SaveGameResults(ctx context.Context, room models.Room) error {
	a.saved <- room
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupRoom creates a service with a memory store and a room with the host
// plus n-1 joined players ("host", "p1", "p2", ...).
func setupRoom(t *testing.T, j judge.Judge, n int) (*Service, string) {
	t.Helper()
	svc := New(store.NewMemoryStore(), j, testLogger())

	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, "host", "Host", models.GameTypeJustOne)
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := svc.JoinRoom(ctx, room.ID, id, "Player "+id)
		require.NoError(t, err)
	}
	return svc, room.ID
}

// hinters returns every player id except the current answerer.
func hinters(room models.Room) []string {
	var out []string
	for _, p := range room.Players {
		if p.ID != room.Game.AnswererID {
			out = append(out, p.ID)
		}
	}
	return out
}

func TestCreateRoomSetsHost(t *testing.T) {
	svc := New(store.NewMemoryStore(), &stubJudge{}, testLogger())
	room, err := svc.CreateRoom(context.Background(), "host", "Host", models.GameTypeJustOne)
	require.NoError(t, err)
	assert.Len(t, room.ID, 4)
	require.Len(t, room.Players, 1)
	assert.True(t, room.Players[0].IsHost)
	assert.True(t, room.Players[0].IsConnected)
	assert.Nil(t, room.Game)
}

func TestJoinRoomReconnectIsIdempotent(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()

	_, err := svc.SetPlayerConnection(ctx, roomID, "p1", false)
	require.NoError(t, err)

	room, err := svc.JoinRoom(ctx, roomID, "p1", "Player p1")
	require.NoError(t, err)
	assert.Len(t, room.Players, 3, "rejoining must not duplicate the player")
	p, ok := models.FindPlayer(room, "p1")
	require.True(t, ok)
	assert.True(t, p.IsConnected)
}

func TestJoinRoomNotFound(t *testing.T) {
	svc := New(store.NewMemoryStore(), &stubJudge{}, testLogger())
	_, err := svc.JoinRoom(context.Background(), "ZZZZ", "p1", "Alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomFull(t *testing.T) {
	cfg := models.GameConfigs[models.GameTypeJustOne]
	svc, roomID := setupRoom(t, &stubJudge{}, cfg.MaxPlayers)
	_, err := svc.JoinRoom(context.Background(), roomID, "extra", "Extra")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestStartGame(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	room, err := svc.StartGame(context.Background(), roomID, "host", 0, nil)
	require.NoError(t, err)
	require.NotNil(t, room.Game)
	assert.Equal(t, models.PhaseHinting, room.Game.Phase)
	assert.Equal(t, 1, room.Game.Round)
	assert.Equal(t, "topic-1", room.Game.Topic)
	assert.Equal(t, []string{"topic-1"}, room.Game.UsedTopics)
	_, ok := models.FindPlayer(room, room.Game.AnswererID)
	assert.True(t, ok, "answerer must be a room member")
}

func TestStartGameRequiresHost(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	_, err := svc.StartGame(context.Background(), roomID, "p1", 0, nil)
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestStartGameNotEnoughPlayers(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 2)
	_, err := svc.StartGame(context.Background(), roomID, "host", 0, nil)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestStartGameTwice(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	_, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, roomID, "host", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestStartGameTopicFallsBackWhenJudgeDown(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{topicErr: errors.New("api down")}, 3)
	room, err := svc.StartGame(context.Background(), roomID, "host", 0, nil)
	require.NoError(t, err, "topic generation failure must not block starting")
	assert.NotEmpty(t, room.Game.Topic)
}

func TestSubmitHintBeforeStart(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	_, err := svc.SubmitHint(context.Background(), roomID, "p1", "赤い")
	assert.ErrorIs(t, err, ErrGameNotStarted)
}

func TestSubmitHintRejectsMultiWord(t *testing.T) {
	j := &stubJudge{formatSet: true, formatValid: false}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	_, err = svc.SubmitHint(ctx, roomID, hinters(room)[0], "two words")
	assert.ErrorIs(t, err, ErrHintNotSingleWord)

	room, err = svc.loadRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, room.Game.Hints, "rejected hint must not land")
}

func TestSubmitHintLocalPrecheckBeatsJudge(t *testing.T) {
	// The judge approves everything, but the deterministic check still
	// rejects a hint equal to the topic.
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	_, err = svc.SubmitHint(ctx, roomID, hinters(room)[0], room.Game.Topic)
	assert.ErrorIs(t, err, ErrHintContainsTopic)
}

func TestSubmitHintFailOpenOnJudgeErrors(t *testing.T) {
	j := &stubJudge{formatErr: errors.New("down"), againstErr: errors.New("down")}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	room, err = svc.SubmitHint(ctx, roomID, hinters(room)[0], "赤い")
	require.NoError(t, err, "judge outage must not block hints")
	require.Len(t, room.Game.Hints, 1)
	assert.True(t, room.Game.Hints[0].IsValid)
}

func TestAllHintsTransitionToGuessing(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	hs := hinters(room)
	room, err = svc.SubmitHint(ctx, roomID, hs[0], "ひとつめ")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseHinting, room.Game.Phase)

	room, err = svc.SubmitHint(ctx, roomID, hs[1], "ふたつめ")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseGuessing, room.Game.Phase)
	require.Len(t, room.Game.Hints, 2)
	for _, h := range room.Game.Hints {
		assert.True(t, h.IsValid)
	}
}

func TestDuplicateHintsInvalidatedInGroups(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	hs := hinters(room)
	j := svc.judge.(*stubJudge)
	j.hintVerdicts = []judge.HintVerdict{
		{PlayerID: hs[0], IsValid: false, Reason: "duplicate"},
		{PlayerID: hs[1], IsValid: false, Reason: "duplicate"},
	}

	_, err = svc.SubmitHint(ctx, roomID, hs[0], "赤い")
	require.NoError(t, err)
	room, err = svc.SubmitHint(ctx, roomID, hs[1], "あかい")
	require.NoError(t, err)

	assert.Equal(t, models.PhaseGuessing, room.Game.Phase)
	for _, h := range room.Game.Hints {
		assert.False(t, h.IsValid)
	}
}

func TestHintJudgeOutageMarksAllValid(t *testing.T) {
	j := &stubJudge{hintsErr: errors.New("down")}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	hs := hinters(room)
	_, err = svc.SubmitHint(ctx, roomID, hs[0], "赤い")
	require.NoError(t, err)
	room, err = svc.SubmitHint(ctx, roomID, hs[1], "果物")
	require.NoError(t, err)

	assert.Equal(t, models.PhaseGuessing, room.Game.Phase)
	for _, h := range room.Game.Hints {
		assert.True(t, h.IsValid, "duplicate-judge outage fails open")
	}
}

func TestConcurrentSubmitHintsBothLand(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	hs := hinters(room)
	var wg sync.WaitGroup
	for i, id := range hs {
		wg.Add(1)
		go func(id string, n int) {
			defer wg.Done()
			_, err := svc.SubmitHint(ctx, roomID, id, fmt.Sprintf("ヒント%d", n))
			assert.NoError(t, err)
		}(id, i)
	}
	wg.Wait()

	room, err = svc.loadRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, room.Game.Hints, 2, "concurrent submissions must both persist")
	assert.Equal(t, models.PhaseGuessing, room.Game.Phase)
}

// advanceToGuessing drives a started game through the hint phase.
func advanceToGuessing(t *testing.T, svc *Service, roomID string) models.Room {
	t.Helper()
	ctx := context.Background()
	room, err := svc.loadRoom(ctx, roomID)
	require.NoError(t, err)
	for i, id := range hinters(room) {
		room, err = svc.SubmitHint(ctx, roomID, id, fmt.Sprintf("ヒント%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, models.PhaseGuessing, room.Game.Phase)
	return room
}

func TestSubmitAnswerOnlyAnswerer(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	room = advanceToGuessing(t, svc, roomID)

	_, err = svc.SubmitAnswer(ctx, roomID, hinters(room)[0], "りんご")
	assert.ErrorIs(t, err, ErrNotAnswerer)
}

func TestSubmitAnswerCorrect(t *testing.T) {
	j := &stubJudge{answerVerdict: &judge.AnswerVerdict{IsCorrect: true}}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	room = advanceToGuessing(t, svc, roomID)

	room, err = svc.SubmitAnswer(ctx, roomID, room.Game.AnswererID, "Topic-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResult, room.Game.Phase)
	require.NotNil(t, room.Game.IsCorrect)
	assert.True(t, *room.Game.IsCorrect)
	require.Len(t, room.Game.RoundResults, 1)
	assert.Equal(t, room.Game.AnswererID, room.Game.RoundResults[0].AnswererID)
}

func TestSubmitAnswerJudgeDownFallsBackToExactMatch(t *testing.T) {
	j := &stubJudge{answerErr: errors.New("down")}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	room = advanceToGuessing(t, svc, roomID)

	room, err = svc.SubmitAnswer(ctx, roomID, room.Game.AnswererID, " TOPIC-1 ")
	require.NoError(t, err)
	require.NotNil(t, room.Game.IsCorrect)
	assert.True(t, *room.Game.IsCorrect, "normalized exact match decides when the judge is down")
}

func TestSubmitAnswerWrongPhase(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, roomID, room.Game.AnswererID, "りんご")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestNextRoundRotatesAnswererAndExcludesTopics(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 3, nil)
	require.NoError(t, err)
	firstAnswerer := room.Game.AnswererID
	room = advanceToGuessing(t, svc, roomID)
	_, err = svc.SubmitAnswer(ctx, roomID, firstAnswerer, "なにか")
	require.NoError(t, err)

	room, err = svc.NextRound(ctx, roomID, "host")
	require.NoError(t, err)
	assert.Equal(t, 2, room.Game.Round)
	assert.Equal(t, models.PhaseHinting, room.Game.Phase)
	assert.NotEqual(t, firstAnswerer, room.Game.AnswererID)
	assert.Equal(t, []string{"topic-1", "topic-2"}, room.Game.UsedTopics)
	assert.Len(t, room.Game.RoundResults, 1, "history survives the round reset")
}

func TestNextRoundRequiresHostAndResultPhase(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	_, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	_, err = svc.NextRound(ctx, roomID, "p1")
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = svc.NextRound(ctx, roomID, "host")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestLastRoundFinishesAndArchives(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	arch := &stubArchiver{saved: make(chan models.Room, 1)}
	svc.Archive = arch

	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 1, nil)
	require.NoError(t, err)
	answerer := room.Game.AnswererID
	advanceToGuessing(t, svc, roomID)
	_, err = svc.SubmitAnswer(ctx, roomID, answerer, "なにか")
	require.NoError(t, err)

	room, err = svc.NextRound(ctx, roomID, "host")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFinished, room.Game.Phase)
	assert.Len(t, room.Game.RoundResults, 1)

	select {
	case archived := <-arch.saved:
		assert.Equal(t, roomID, archived.ID)
		assert.Equal(t, models.PhaseFinished, archived.Game.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("finished game was never archived")
	}
}

func TestRegenerateTopic(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)

	room, err = svc.RegenerateTopic(ctx, roomID, "host")
	require.NoError(t, err)
	assert.Equal(t, "topic-2", room.Game.Topic)
	assert.Equal(t, []string{"topic-1", "topic-2"}, room.Game.UsedTopics)
	assert.Equal(t, 1, room.Game.Round)
}

func TestRegenerateTopicRejectedAfterHints(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	_, err = svc.SubmitHint(ctx, roomID, hinters(room)[0], "赤い")
	require.NoError(t, err)

	_, err = svc.RegenerateTopic(ctx, roomID, "host")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestGenerateTopicRejectsExcludedJudgeOutput(t *testing.T) {
	// The judge keeps returning an already-used topic; the service must fall
	// back rather than repeat it.
	j := &stubJudge{fixedTopic: "topic-1"}
	svc, roomID := setupRoom(t, j, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 0, nil)
	require.NoError(t, err)
	require.Equal(t, "topic-1", room.Game.Topic)

	room, err = svc.RegenerateTopic(ctx, roomID, "host")
	require.NoError(t, err)
	assert.NotEqual(t, "topic-1", room.Game.Topic)
}

func TestReturnToLobby(t *testing.T) {
	svc, roomID := setupRoom(t, &stubJudge{}, 3)
	ctx := context.Background()
	room, err := svc.StartGame(ctx, roomID, "host", 1, nil)
	require.NoError(t, err)
	answerer := room.Game.AnswererID
	advanceToGuessing(t, svc, roomID)
	_, err = svc.SubmitAnswer(ctx, roomID, answerer, "なにか")
	require.NoError(t, err)

	// Mid-game the command is rejected.
	_, err = svc.ReturnToLobby(ctx, roomID, "host")
	assert.ErrorIs(t, err, ErrInvalidPhase)

	room, err = svc.NextRound(ctx, roomID, "host")
	require.NoError(t, err)
	require.Equal(t, models.PhaseFinished, room.Game.Phase)

	room, err = svc.ReturnToLobby(ctx, roomID, "host")
	require.NoError(t, err)
	assert.Nil(t, room.Game)
	assert.Len(t, room.Players, 3, "players keep their seats back in the lobby")
}
