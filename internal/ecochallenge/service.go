// Package ecochallenge runs eco-challenge participation: joining, progress
// tracking, completion rewards and the periodic expiry sweep.
package ecochallenge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/metrics"
	"github.com/ukydev/vitarenta/internal/models"
)

var (
	ErrChallengeClosed = errors.New("challenge is not open")
	ErrChallengeFull   = errors.New("challenge has reached its maximum number of participants")
	ErrChallengeBusy   = errors.New("challenge is being joined by another request, retry shortly")
	ErrAlreadyJoined   = errors.New("already participating in this challenge")
	ErrNotActive       = errors.New("participation is not active")
	ErrDeadlinePassed  = errors.New("participation deadline has passed")
	ErrNotClaimable    = errors.New("reward is not claimable")
	ErrNotOwner        = errors.New("participation belongs to another user")
	ErrInvalidWindow   = errors.New("valid_until must be after valid_from")
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100

	joinLockTTL = 30 * time.Second
)

// Service implements the eco-challenge rules on top of the stores.
type Service struct {
	challenges     db.ChallengeCollection
	participations db.ParticipationCollection
	progress       db.ProgressCollection
	rewards        db.RewardCollection
	users          db.UserCollection
	locks          db.LockCollection
	now            func() time.Time
}

// NewService returns a Service backed by the given stores. Joins of one
// challenge are serialized through locks.
func NewService(challenges db.ChallengeCollection, participations db.ParticipationCollection, progress db.ProgressCollection, rewards db.RewardCollection, users db.UserCollection, locks db.LockCollection) *Service {
	return &Service{
		challenges:     challenges,
		participations: participations,
		progress:       progress,
		rewards:        rewards,
		users:          users,
		locks:          locks,
		now:            time.Now,
	}
}

// List returns challenges matching filter. Only administrators see closed
// or inactive challenges.
func (s *Service) List(ctx context.Context, actor *models.Claims, filter db.ChallengeFilter) ([]models.EcoChallenge, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		now := s.now().UTC()
		filter.OpenAt = &now
	}
	return s.challenges.FindChallenges(ctx, filter)
}

// Get returns one challenge. Non-administrators get db.ErrNotFound for a
// challenge that is not open.
func (s *Service) Get(ctx context.Context, actor *models.Claims, id string) (*models.EcoChallenge, error) {
	c, err := s.challenges.FindChallengeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if (actor == nil || actor.Role != models.RoleAdmin) && !c.OpenAt(s.now()) {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func checkWindow(c *models.EcoChallenge) error {
	if c.ValidUntil != nil && !c.ValidFrom.IsZero() && !c.ValidUntil.After(c.ValidFrom) {
		return ErrInvalidWindow
	}
	return nil
}

// Create stores a new challenge definition.
func (s *Service) Create(ctx context.Context, c *models.EcoChallenge) error {
	if err := checkWindow(c); err != nil {
		return err
	}
	return s.challenges.InsertChallenge(ctx, c)
}

// Update replaces a challenge definition.
func (s *Service) Update(ctx context.Context, c *models.EcoChallenge) error {
	if err := checkWindow(c); err != nil {
		return err
	}
	return s.challenges.UpdateChallenge(ctx, c)
}

// Delete removes a challenge definition.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.challenges.DeleteChallenge(ctx, id)
}

// Join enrolls userID in a challenge. The deadline is now plus the
// challenge duration, capped at the end of its validity window. The
// duplicate and capacity checks and the insert run under the challenge's
// advisory lock; ErrChallengeBusy means another join holds it.
func (s *Service) Join(ctx context.Context, userID, challengeID string) (*models.UserEcoChallenge, error) {
	c, err := s.challenges.FindChallengeByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !c.OpenAt(now) {
		return nil, ErrChallengeClosed
	}

	key := "challenge:" + challengeID
	owner := uuid.NewString()
	if err := s.locks.Acquire(ctx, key, owner, joinLockTTL); err != nil {
		if errors.Is(err, db.ErrLocked) {
			return nil, ErrChallengeBusy
		}
		return nil, fmt.Errorf("acquire challenge lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, key, owner); err != nil {
			log.WithError(err).WithField("lock", key).Warn("Failed to release challenge lock")
		}
	}()

	existing, err := s.participations.FindParticipations(ctx, db.ParticipationFilter{
		UserID:      userID,
		ChallengeID: challengeID,
		Statuses:    []models.ParticipationStatus{models.ParticipationActive, models.ParticipationCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("find participations: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyJoined
	}

	if c.MaxParticipants > 0 {
		n, err := s.participations.CountParticipants(ctx, challengeID)
		if err != nil {
			return nil, fmt.Errorf("count participants: %w", err)
		}
		if n >= int64(c.MaxParticipants) {
			return nil, ErrChallengeFull
		}
	}

	deadline := now.AddDate(0, 0, c.DurationDays)
	if c.ValidUntil != nil && c.ValidUntil.Before(deadline) {
		deadline = c.ValidUntil.UTC()
	}
	p := &models.UserEcoChallenge{
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      models.ParticipationActive,
		StartedAt:   now,
		Deadline:    deadline,
	}
	if err := s.participations.InsertParticipation(ctx, p); err != nil {
		return nil, fmt.Errorf("insert participation: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":      userID,
		"challenge_id": challengeID,
		"deadline":     deadline,
	}).Info("Joined eco-challenge")
	return p, nil
}

// Mine lists the participations of userID.
func (s *Service) Mine(ctx context.Context, userID string) ([]models.UserEcoChallenge, error) {
	return s.participations.FindParticipations(ctx, db.ParticipationFilter{UserID: userID})
}

func (s *Service) owned(ctx context.Context, actor *models.Claims, id string, allowAdmin bool) (*models.UserEcoChallenge, error) {
	p, err := s.participations.FindParticipationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != actor.UserID && !(allowAdmin && actor.Role == models.RoleAdmin) {
		return nil, ErrNotOwner
	}
	return p, nil
}

// RecordProgress adds a manual progress entry to the actor's participation.
// Reaching the target completes the participation and grants its reward.
// A participation found past its deadline is expired and ErrDeadlinePassed
// returned.
func (s *Service) RecordProgress(ctx context.Context, actor *models.Claims, id string, req *models.ProgressRequest) (*models.UserEcoChallenge, error) {
	p, err := s.owned(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, p); err != nil {
		return nil, err
	}
	c, err := s.challenges.FindChallengeByID(ctx, p.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("find challenge: %w", err)
	}
	return s.record(ctx, p, c, req.Value, req.Notes, models.ProgressManual)
}

// ensureActive rejects participations that can no longer progress, expiring
// those past their deadline.
func (s *Service) ensureActive(ctx context.Context, p *models.UserEcoChallenge) error {
	if p.Status != models.ParticipationActive {
		return ErrNotActive
	}
	if s.now().UTC().After(p.Deadline) {
		id := p.ID.Hex()
		if err := s.participations.SetParticipationStatus(ctx, id, models.ParticipationActive, models.ParticipationExpired); err != nil && !errors.Is(err, db.ErrConflict) {
			log.WithError(err).WithField("participation_id", id).Warn("Failed to expire participation")
		}
		return ErrDeadlinePassed
	}
	return nil
}

func (s *Service) record(ctx context.Context, p *models.UserEcoChallenge, c *models.EcoChallenge, value float64, notes, entryType string) (*models.UserEcoChallenge, error) {
	id := p.ID.Hex()
	now := s.now().UTC()
	updated, err := s.participations.IncrementProgress(ctx, id, value, c.TargetValue)
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, ErrNotActive
		}
		return nil, err
	}

	entry := &models.EcoChallengeProgress{
		UserChallengeID: id,
		UserID:          p.UserID,
		Value:           value,
		EntryType:       entryType,
		Notes:           notes,
		RecordedAt:      now,
	}
	if err := s.progress.InsertProgress(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert progress: %w", err)
	}

	if updated.Progress >= c.TargetValue {
		if err := s.complete(ctx, updated, c); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *Service) complete(ctx context.Context, p *models.UserEcoChallenge, c *models.EcoChallenge) error {
	id := p.ID.Hex()
	err := s.participations.SetParticipationStatus(ctx, id, models.ParticipationActive, models.ParticipationCompleted)
	switch {
	case errors.Is(err, db.ErrConflict):
		// completed concurrently; the reward below is idempotent
	case err != nil:
		return fmt.Errorf("complete participation: %w", err)
	default:
		metrics.EcoChallengeCompletions.Inc()
	}
	now := s.now().UTC()
	p.Status = models.ParticipationCompleted
	p.CompletedAt = &now

	if _, err := s.grantReward(ctx, p, c); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"participation_id": id,
		"user_id":          p.UserID,
		"challenge_id":     c.ID.Hex(),
	}).Info("Eco-challenge completed")
	return nil
}

func (s *Service) grantReward(ctx context.Context, p *models.UserEcoChallenge, c *models.EcoChallenge) (bool, error) {
	created, err := s.rewards.EnsureReward(ctx, &models.EcoChallengeReward{
		UserID:          p.UserID,
		UserChallengeID: p.ID.Hex(),
		ChallengeID:     p.ChallengeID,
		Points:          c.RewardPoints,
		Credit:          c.RewardCredit,
		Badge:           c.RewardBadge,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("ensure reward: %w", err)
	}
	return created, nil
}

// ProgressEntries lists the progress entries of a participation.
func (s *Service) ProgressEntries(ctx context.Context, actor *models.Claims, id string) ([]models.EcoChallengeProgress, error) {
	if _, err := s.owned(ctx, actor, id, true); err != nil {
		return nil, err
	}
	return s.progress.FindProgress(ctx, id)
}

// Abandon moves an active participation to abandoned.
func (s *Service) Abandon(ctx context.Context, actor *models.Claims, id string) (*models.UserEcoChallenge, error) {
	p, err := s.owned(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ParticipationActive {
		return nil, ErrNotActive
	}
	if err := s.participations.SetParticipationStatus(ctx, id, models.ParticipationActive, models.ParticipationAbandoned); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, ErrNotActive
		}
		return nil, err
	}
	p.Status = models.ParticipationAbandoned
	return p, nil
}

// Claim marks the reward of a completed participation as claimed and credits
// its points to the user's eco score. A second claim fails with
// ErrNotClaimable. If the credit fails the claim flag is cleared again.
func (s *Service) Claim(ctx context.Context, actor *models.Claims, id string) (*models.EcoChallengeReward, error) {
	p, err := s.owned(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ParticipationCompleted || p.RewardClaimed {
		return nil, ErrNotClaimable
	}
	c, err := s.challenges.FindChallengeByID(ctx, p.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("find challenge: %w", err)
	}
	if _, err := s.grantReward(ctx, p, c); err != nil {
		return nil, err
	}
	if err := s.participations.MarkRewardClaimed(ctx, id); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, ErrNotClaimable
		}
		return nil, err
	}
	if c.RewardPoints > 0 {
		if err := s.users.AddEcoScore(ctx, p.UserID, c.RewardPoints); err != nil {
			// Unflag so the claim can be retried.
			if uerr := s.participations.UnmarkRewardClaimed(context.WithoutCancel(ctx), id); uerr != nil {
				log.WithError(uerr).WithField("participation_id", id).Error("Failed to reopen reward claim")
			}
			return nil, fmt.Errorf("credit eco score: %w", err)
		}
	}
	if err := s.rewards.MarkClaimed(ctx, id); err != nil {
		log.WithError(err).WithField("participation_id", id).Warn("Failed to mark reward document claimed")
	}

	log.WithFields(log.Fields{
		"participation_id": id,
		"user_id":          p.UserID,
		"points":           c.RewardPoints,
	}).Info("Eco-challenge reward claimed")
	return &models.EcoChallengeReward{
		UserID:          p.UserID,
		UserChallengeID: id,
		ChallengeID:     p.ChallengeID,
		Points:          c.RewardPoints,
		Credit:          c.RewardCredit,
		Badge:           c.RewardBadge,
		Claimed:         true,
	}, nil
}

// Leaderboard ranks users by reward points. limit defaults to
// DefaultLeaderboardSize and is capped at MaxLeaderboardSize.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	return s.rewards.Leaderboard(ctx, limit)
}

// Analytics returns participation counts per challenge with completion rates
// in percent.
func (s *Service) Analytics(ctx context.Context) ([]models.ChallengeAnalytics, error) {
	rows, err := s.participations.ParticipationAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Participants > 0 {
			rate := float64(rows[i].Completed) / float64(rows[i].Participants) * 100
			rows[i].CompletionRate = math.Round(rate*100) / 100
		}
	}
	return rows, nil
}

// Sweep expires overdue participations, deactivates challenges past their
// validity window and creates rewards missing for completed participations.
// Running it repeatedly is safe.
func (s *Service) Sweep(ctx context.Context) (models.SweepResult, error) {
	var res models.SweepResult
	now := s.now().UTC()

	expired, err := s.participations.ExpireOverdue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("expire participations: %w", err)
	}
	res.ExpiredParticipations = expired

	deactivated, err := s.challenges.DeactivateExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("deactivate challenges: %w", err)
	}
	res.DeactivatedChallenges = deactivated

	completed, err := s.participations.FindParticipations(ctx, db.ParticipationFilter{
		Statuses: []models.ParticipationStatus{models.ParticipationCompleted},
	})
	if err != nil {
		return res, fmt.Errorf("find completed participations: %w", err)
	}
	challenges := make(map[string]*models.EcoChallenge)
	for i := range completed {
		p := &completed[i]
		c, ok := challenges[p.ChallengeID]
		if !ok {
			c, err = s.challenges.FindChallengeByID(ctx, p.ChallengeID)
			if errors.Is(err, db.ErrNotFound) {
				log.WithField("challenge_id", p.ChallengeID).Warn("Completed participation references a missing challenge")
				challenges[p.ChallengeID] = nil
				continue
			}
			if err != nil {
				return res, fmt.Errorf("find challenge: %w", err)
			}
			challenges[p.ChallengeID] = c
		}
		if c == nil {
			continue
		}
		created, err := s.grantReward(ctx, p, c)
		if err != nil {
			return res, err
		}
		if created {
			res.RewardsCreated++
		}
	}

	metrics.RecordSweep(res.ExpiredParticipations, res.DeactivatedChallenges, res.RewardsCreated)
	log.WithFields(log.Fields{
		"expired":     res.ExpiredParticipations,
		"deactivated": res.DeactivatedChallenges,
		"rewards":     res.RewardsCreated,
	}).Info("Eco-challenge sweep finished")
	return res, nil
}
