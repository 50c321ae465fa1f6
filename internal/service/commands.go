// internal/service/commands.go
package service

import (
	"context"
	"fmt"

	"hintone/internal/game"
	"hintone/internal/judge"
	"hintone/internal/models"
)

// StartGame creates the first round. Host only; the room must not already
// have a game in progress, and enough players must be present.
func (s *Service) StartGame(ctx context.Context, roomID, playerID string, totalRounds int, excludeTopics []string) (models.Room, error) {
	lock := s.roomLock(roomID)

	lock.Lock()
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := s.checkStartable(room, playerID); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	lock.Unlock()

	// Topic generation is a judge round-trip; never hold the room lock
	// across it.
	topic := s.generateTopic(ctx, excludeTopics)

	lock.Lock()
	defer lock.Unlock()

	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if err := s.checkStartable(room, playerID); err != nil {
		return models.Room{}, err
	}
	answerer, ok := game.PickFirstAnswerer(room.Players)
	if !ok {
		return models.Room{}, fmt.Errorf("no connected players: %w", ErrNotEnoughPlayers)
	}

	room.Game = game.NewJustOneGame(answerer.ID, topic, totalRounds)
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithFields(map[string]interface{}{
		"room":     room.ID,
		"answerer": answerer.ID,
		"rounds":   room.Game.TotalRounds,
	}).Info("game started")
	return room, nil
}

func (s *Service) checkStartable(room models.Room, playerID string) error {
	if err := requireHost(room, playerID); err != nil {
		return err
	}
	if room.Game != nil {
		return fmt.Errorf("game already in progress: %w", ErrInvalidPhase)
	}
	cfg := models.GameConfigs[room.GameType]
	if len(room.Players) < cfg.MinPlayers {
		return fmt.Errorf("need at least %d players: %w", cfg.MinPlayers, ErrNotEnoughPlayers)
	}
	return nil
}

// SubmitHint validates and records one player's hint. When the last expected
// hint lands, the round's hints are duplicate-judged and the game moves to
// GUESSING — judging always completes before the transition so the
// answerer's view never leaks invalid hint text.
func (s *Service) SubmitHint(ctx context.Context, roomID, playerID, hint string) (models.Room, error) {
	lock := s.roomLock(roomID)

	lock.Lock()
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requirePhase(g, models.PhaseHinting); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	player, ok := models.FindPlayer(room, playerID)
	if !ok {
		lock.Unlock()
		return models.Room{}, fmt.Errorf("player %s: %w", playerID, ErrPlayerNotInRoom)
	}
	topic := g.Topic
	lock.Unlock()

	// Validation happens without the lock; both judge calls fail open.
	if err := s.validateHint(ctx, topic, hint); err != nil {
		return models.Room{}, err
	}

	lock.Lock()
	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	g, err = justOneGame(room)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	// The room may have advanced or regenerated its topic while this hint
	// was being validated; the validation applied to the old topic, so the
	// submission no longer stands.
	if g.Phase != models.PhaseHinting || g.Topic != topic {
		lock.Unlock()
		return models.Room{}, ErrStateChanged
	}

	updated := game.SubmitHint(g, playerID, player.Name, hint)
	room.Game = updated

	// The hint is persisted before duplicate judging so a concurrent
	// submission can never clobber it.
	if err := s.persist(ctx, room); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}

	quota := len(connectedNonAnswerers(room, updated.AnswererID)) + 1
	done := game.AllHintsSubmitted(updated, quota)
	hintsSnapshot := append([]models.Hint(nil), updated.Hints...)
	lock.Unlock()

	if !done {
		return room, nil
	}
	return s.resolveHints(ctx, roomID, topic, hintsSnapshot)
}

// validateHint runs the format judge, the local topic pre-checks, and the
// against-topic judge, in that order. Judge failures default to valid.
func (s *Service) validateHint(ctx context.Context, topic, hint string) error {
	jctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()

	format, err := s.judge.ValidateHintFormat(jctx, hint)
	if err != nil {
		s.logger.Warnf("hint format judge failed (%v), accepting", err)
	} else if !format.IsValid {
		return fmt.Errorf("%s: %w", format.Error, ErrHintNotSingleWord)
	}

	// Local pre-checks apply identically whether or not the judge is
	// reachable.
	if pre := judge.CheckHintAgainstTopic(topic, hint); !pre.IsValid {
		return fmt.Errorf("%s: %w", pre.Error, ErrHintContainsTopic)
	}

	against, err := s.judge.ValidateHintAgainstTopic(jctx, topic, hint)
	if err != nil {
		s.logger.Warnf("hint-vs-topic judge failed (%v), accepting", err)
		return nil
	}
	if !against.IsValid {
		return fmt.Errorf("%s: %w", against.Error, ErrHintContainsTopic)
	}
	return nil
}

// resolveHints duplicate-judges a completed hint set and transitions the
// round to GUESSING. Judge failure marks everything valid rather than
// wedging the room in HINTING.
func (s *Service) resolveHints(ctx context.Context, roomID, topic string, hints []models.Hint) (models.Room, error) {
	jctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	verdicts, err := s.judge.JudgeHints(jctx, topic, hints)
	cancel()
	if err != nil {
		s.logger.Warnf("hint duplicate judge failed (%v), marking all valid", err)
		verdicts = nil
	}

	validity := make(map[string]bool, len(hints))
	for _, h := range hints {
		validity[h.PlayerID] = true
	}
	for _, v := range verdicts {
		validity[v.PlayerID] = v.IsValid
	}

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		return models.Room{}, err
	}
	// The round may have been regenerated (hints cleared) or advanced while
	// judging; in that case the verdicts no longer apply.
	if g.Phase != models.PhaseHinting || g.Topic != topic || len(g.Hints) < len(hints) {
		return room, nil
	}

	updated := game.SetHintValidity(g, validity)
	updated = game.TransitionToGuessing(updated)
	room.Game = updated
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithFields(map[string]interface{}{
		"room":  room.ID,
		"round": updated.Round,
		"hints": len(updated.Hints),
	}).Info("hints judged, guessing begins")
	return room, nil
}

// SubmitAnswer records the answerer's guess. Correctness comes from the
// answer judge, which tolerates spelling variants; if the judge is down, a
// normalized exact match decides.
func (s *Service) SubmitAnswer(ctx context.Context, roomID, playerID, answer string) (models.Room, error) {
	lock := s.roomLock(roomID)

	lock.Lock()
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requirePhase(g, models.PhaseGuessing); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if g.AnswererID != playerID {
		lock.Unlock()
		return models.Room{}, ErrNotAnswerer
	}
	topic := g.Topic
	round := g.Round
	answererName := "???"
	if p, ok := models.FindPlayer(room, g.AnswererID); ok {
		answererName = p.Name
	}
	lock.Unlock()

	jctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	verdict, err := s.judge.JudgeAnswer(jctx, topic, answer)
	cancel()
	if err != nil {
		s.logger.Warnf("answer judge failed (%v), falling back to exact match", err)
		verdict = judge.AnswerVerdict{IsCorrect: judge.NormalizedMatch(topic, answer)}
	}

	lock.Lock()
	defer lock.Unlock()

	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	g, err = justOneGame(room)
	if err != nil {
		return models.Room{}, err
	}
	if g.Phase != models.PhaseGuessing || g.Round != round || g.AnswererID != playerID {
		return models.Room{}, ErrStateChanged
	}

	room.Game = game.ApplyAnswer(g, answer, answererName, verdict.IsCorrect)
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithFields(map[string]interface{}{
		"room":    room.ID,
		"round":   round,
		"correct": verdict.IsCorrect,
	}).Info("answer judged")
	return room, nil
}

// NextRound advances past a RESULT phase: it either finishes the game on the
// last round or rotates the answerer and starts a new round with a fresh
// topic. Host only.
func (s *Service) NextRound(ctx context.Context, roomID, playerID string) (models.Room, error) {
	lock := s.roomLock(roomID)

	lock.Lock()
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requireHost(room, playerID); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requirePhase(g, models.PhaseResult); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}

	if game.IsLastRound(g) {
		room.Game = game.Finish(g)
		err := s.persist(ctx, room)
		lock.Unlock()
		if err != nil {
			return models.Room{}, err
		}
		s.logger.WithField("room", room.ID).Info("game finished")
		s.archiveFinished(room)
		return room, nil
	}

	round := g.Round
	exclude := append([]string(nil), g.UsedTopics...)
	lock.Unlock()

	topic := s.generateTopic(ctx, exclude)

	lock.Lock()
	defer lock.Unlock()

	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	g, err = justOneGame(room)
	if err != nil {
		return models.Room{}, err
	}
	if g.Phase != models.PhaseResult || g.Round != round {
		return models.Room{}, ErrStateChanged
	}
	next, ok := game.NextAnswerer(room.Players, g.AnswererID)
	if !ok {
		return models.Room{}, fmt.Errorf("no connected players: %w", ErrNotEnoughPlayers)
	}

	room.Game = game.ResetForNextRound(g, next.ID, topic)
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithFields(map[string]interface{}{
		"room":     room.ID,
		"round":    room.Game.Round,
		"answerer": next.ID,
	}).Info("next round started")
	return room, nil
}

// RegenerateTopic replaces the current round's topic before any hints have
// been submitted. Host only, HINTING phase only.
func (s *Service) RegenerateTopic(ctx context.Context, roomID, playerID string) (models.Room, error) {
	lock := s.roomLock(roomID)

	lock.Lock()
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	g, err := justOneGame(room)
	if err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requireHost(room, playerID); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	if err := requirePhase(g, models.PhaseHinting); err != nil {
		lock.Unlock()
		return models.Room{}, err
	}
	// Regenerating after hints exist would discard submitted work.
	if len(g.Hints) > 0 {
		lock.Unlock()
		return models.Room{}, fmt.Errorf("hints already submitted: %w", ErrInvalidPhase)
	}
	round := g.Round
	exclude := append([]string(nil), g.UsedTopics...)
	lock.Unlock()

	topic := s.generateTopic(ctx, exclude)

	lock.Lock()
	defer lock.Unlock()

	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	g, err = justOneGame(room)
	if err != nil {
		return models.Room{}, err
	}
	if g.Phase != models.PhaseHinting || g.Round != round || len(g.Hints) > 0 {
		return models.Room{}, ErrStateChanged
	}

	room.Game = game.RegenerateTopic(g, topic)
	if err := s.persist(ctx, room); err != nil {
		return models.Room{}, err
	}
	s.logger.WithField("room", room.ID).Info("topic regenerated")
	return room, nil
}

// connectedNonAnswerers returns the hint-submitting population for quota
// purposes: connected players minus the answerer.
func connectedNonAnswerers(room models.Room, answererID string) []models.Player {
	var out []models.Player
	for _, p := range room.Players {
		if p.IsConnected && p.ID != answererID {
			out = append(out, p)
		}
	}
	return out
}
