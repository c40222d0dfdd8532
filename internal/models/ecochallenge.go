package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChallengeType is the kind of environmental goal.
type ChallengeType string

const (
	ChallengeEcoDriving        ChallengeType = "eco_driving"
	ChallengeCO2Reduction      ChallengeType = "co2_reduction"
	ChallengeFuelEfficiency    ChallengeType = "fuel_efficiency"
	ChallengeElectricUsage     ChallengeType = "electric_usage"
	ChallengeDistanceReduction ChallengeType = "distance_reduction"
)

// Difficulty grades a challenge.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParticipationStatus is the state of a user's attempt at a challenge.
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "active"
	ParticipationCompleted ParticipationStatus = "completed"
	ParticipationAbandoned ParticipationStatus = "abandoned"
	ParticipationExpired   ParticipationStatus = "expired"
)

// Progress entry types.
const (
	ProgressManual    = "manual"
	ProgressTelemetry = "telemetry"
)

// EcoChallenge is a gamified environmental goal users can join.
type EcoChallenge struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title" validate:"required,max=200"`
	Description     string             `bson:"description" json:"description"`
	Type            ChallengeType      `bson:"type" json:"type" validate:"required,oneof=eco_driving co2_reduction fuel_efficiency electric_usage distance_reduction"`
	Difficulty      Difficulty         `bson:"difficulty" json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	TargetValue     float64            `bson:"target_value" json:"target_value" validate:"gt=0"`
	Unit            string             `bson:"unit" json:"unit" validate:"required,oneof=km kg_co2 percent kwh l_100km"`
	RewardPoints    int                `bson:"reward_points" json:"reward_points" validate:"gte=0"`
	RewardCredit    float64            `bson:"reward_credit" json:"reward_credit" validate:"gte=0"`
	RewardBadge     string             `bson:"reward_badge" json:"reward_badge" validate:"max=100"`
	DurationDays    int                `bson:"duration_days" json:"duration_days" validate:"gt=0,lte=365"`
	MaxParticipants int                `bson:"max_participants" json:"max_participants" validate:"gte=0"`
	Featured        bool               `bson:"featured" json:"featured"`
	IsActive        bool               `bson:"is_active" json:"is_active"`
	ValidFrom       time.Time          `bson:"valid_from" json:"valid_from"`
	ValidUntil      *time.Time         `bson:"valid_until,omitempty" json:"valid_until,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// OpenAt reports whether the challenge accepts participants at t.
func (c *EcoChallenge) OpenAt(t time.Time) bool {
	if !c.IsActive || t.Before(c.ValidFrom) {
		return false
	}
	return c.ValidUntil == nil || t.Before(*c.ValidUntil)
}

// UserEcoChallenge is a user's participation in a challenge.
type UserEcoChallenge struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID             string              `bson:"user_id" json:"user_id"`
	ChallengeID        string              `bson:"challenge_id" json:"challenge_id"`
	Status             ParticipationStatus `bson:"status" json:"status"`
	Progress           float64             `bson:"progress" json:"progress"`
	ProgressPercentage float64             `bson:"progress_percentage" json:"progress_percentage"`
	StartedAt          time.Time           `bson:"started_at" json:"started_at"`
	Deadline           time.Time           `bson:"deadline" json:"deadline"`
	CompletedAt        *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	RewardClaimed      bool                `bson:"reward_claimed" json:"reward_claimed"`
	UpdatedAt          time.Time           `bson:"updated_at" json:"updated_at"`
}

// EcoChallengeProgress is one recorded contribution to a participation.
type EcoChallengeProgress struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserChallengeID string             `bson:"user_challenge_id" json:"user_challenge_id"`
	UserID          string             `bson:"user_id" json:"user_id"`
	Value           float64            `bson:"value" json:"value"`
	EntryType       string             `bson:"entry_type" json:"entry_type"`
	Notes           string             `bson:"notes" json:"notes"`
	RecordedAt      time.Time          `bson:"recorded_at" json:"recorded_at"`
}

// EcoChallengeReward is granted once per completed participation.
type EcoChallengeReward struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"user_id" json:"user_id"`
	UserChallengeID string             `bson:"user_challenge_id" json:"user_challenge_id"`
	ChallengeID     string             `bson:"challenge_id" json:"challenge_id"`
	Points          int                `bson:"points" json:"points"`
	Credit          float64            `bson:"credit" json:"credit"`
	Badge           string             `bson:"badge" json:"badge"`
	Claimed         bool               `bson:"claimed" json:"claimed"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// ProgressRequest records progress on a participation.
type ProgressRequest struct {
	Value float64 `json:"value" validate:"gt=0"`
	Notes string  `json:"notes" validate:"max=500"`
}

// LeaderboardEntry is one row of the eco leaderboard.
type LeaderboardEntry struct {
	UserID     string  `bson:"_id" json:"user_id"`
	Points     int     `bson:"points" json:"points"`
	Credit     float64 `bson:"credit" json:"credit"`
	Challenges int     `bson:"challenges" json:"challenges"`
}

// ChallengeAnalytics summarizes participation in one challenge.
type ChallengeAnalytics struct {
	ChallengeID    string  `bson:"_id" json:"challenge_id"`
	Participants   int     `bson:"participants" json:"participants"`
	Completed      int     `bson:"completed" json:"completed"`
	Abandoned      int     `bson:"abandoned" json:"abandoned"`
	Expired        int     `bson:"expired" json:"expired"`
	CompletionRate float64 `bson:"-" json:"completion_rate"`
}

// SweepResult reports what a maintenance sweep changed.
type SweepResult struct {
	ExpiredParticipations int64 `json:"expired_participations"`
	DeactivatedChallenges int64 `json:"deactivated_challenges"`
	RewardsCreated        int   `json:"rewards_created"`
}
