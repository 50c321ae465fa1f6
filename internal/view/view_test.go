// internal/view/view_test.go
package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hintone/internal/game"
	"hintone/internal/models"
)

func viewTestRoom(t *testing.T) models.Room {
	t.Helper()
	room := models.NewRoom("ABCD", models.NewPlayer("host", "Host", true), models.GameTypeJustOne)
	room = models.AddPlayer(room, models.NewPlayer("ans", "Answerer", false))
	room = models.AddPlayer(room, models.NewPlayer("p2", "Bob", false))
	g := game.NewJustOneGame("ans", "りんご", 3)
	g = game.SubmitHint(g, "host", "Host", "赤い")
	g = game.SubmitHint(g, "p2", "Bob", "果物")
	room.Game = g
	return room
}

func TestForPlayerLobbyRoom(t *testing.T) {
	room := models.NewRoom("ABCD", models.NewPlayer("host", "Host", true), models.GameTypeJustOne)
	v := ForPlayer(room, "host")
	assert.Nil(t, v.Game)
	assert.Equal(t, "ABCD", v.ID)
	assert.Len(t, v.Players, 1)
}

func TestForPlayerHintingHidesTopicFromAnswerer(t *testing.T) {
	room := viewTestRoom(t)

	ansView := ForPlayer(room, "ans")
	require.NotNil(t, ansView.Game)
	assert.Nil(t, ansView.Game.Topic)

	hinterView := ForPlayer(room, "host")
	require.NotNil(t, hinterView.Game.Topic)
	assert.Equal(t, "りんご", *hinterView.Game.Topic)
}

func TestForPlayerHintingHidesAllHintText(t *testing.T) {
	room := viewTestRoom(t)

	for _, viewer := range []string{"host", "ans", "p2"} {
		v := ForPlayer(room, viewer)
		require.Len(t, v.Game.Hints, 2)
		for _, h := range v.Game.Hints {
			assert.Nil(t, h.Text, "viewer %s must not see hint text during HINTING", viewer)
			assert.True(t, h.IsValid, "validity reads true during HINTING so verdicts cannot leak")
		}
		// Authorship is visible even while text is hidden.
		assert.Equal(t, "host", v.Game.Hints[0].PlayerID)
	}
}

func TestForPlayerGuessingShowsOnlyValidHints(t *testing.T) {
	room := viewTestRoom(t)
	g := game.SetHintValidity(room.Game, map[string]bool{"host": false})
	room.Game = game.TransitionToGuessing(g)

	v := ForPlayer(room, "ans")
	require.Len(t, v.Game.Hints, 2)

	invalid := v.Game.Hints[0]
	assert.Nil(t, invalid.Text, "invalid hint text stays hidden during GUESSING")
	assert.False(t, invalid.IsValid)

	valid := v.Game.Hints[1]
	require.NotNil(t, valid.Text)
	assert.Equal(t, "果物", *valid.Text)

	// The answerer still cannot see the topic while guessing.
	assert.Nil(t, v.Game.Topic)
}

func TestForPlayerResultRevealsEverything(t *testing.T) {
	room := viewTestRoom(t)
	g := game.SetHintValidity(room.Game, map[string]bool{"host": false})
	g = game.TransitionToGuessing(g)
	room.Game = game.ApplyAnswer(g, "みかん", "Answerer", false)

	v := ForPlayer(room, "ans")
	require.NotNil(t, v.Game.Topic)
	assert.Equal(t, "りんご", *v.Game.Topic)

	require.Len(t, v.Game.Hints, 2)
	for _, h := range v.Game.Hints {
		require.NotNil(t, h.Text, "all hint text is revealed in RESULT, valid or not")
	}
	assert.False(t, v.Game.Hints[0].IsValid)

	require.NotNil(t, v.Game.Answer)
	assert.Equal(t, "みかん", *v.Game.Answer)
	require.NotNil(t, v.Game.IsCorrect)
	assert.False(t, *v.Game.IsCorrect)
	assert.Len(t, v.Game.RoundResults, 1)
}

func TestForPlayerFinishedRevealsTopic(t *testing.T) {
	room := viewTestRoom(t)
	g := game.TransitionToGuessing(room.Game)
	g = game.ApplyAnswer(g, "りんご", "Answerer", true)
	room.Game = game.Finish(g)

	v := ForPlayer(room, "ans")
	require.NotNil(t, v.Game.Topic)
	assert.Equal(t, models.PhaseFinished, v.Game.Phase)
}
