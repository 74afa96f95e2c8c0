package models

import (
	"time"
)

type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	ChatID     int64     `json:"chat_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "sedentary"
	ActivityLightlyActive    ActivityLevel = "lightly_active"
	ActivityModeratelyActive ActivityLevel = "moderately_active"
	ActivityVeryActive       ActivityLevel = "very_active"
	ActivitySuperActive      ActivityLevel = "super_active"
)

type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// UserProfile is written once at onboarding and never updated.
type UserProfile struct {
	UserID              int64         `json:"user_id"`
	Name                string        `json:"name"`
	DateOfBirth         time.Time     `json:"date_of_birth"`
	Gender              Gender        `json:"gender"`
	HeightCM            float64       `json:"height_cm"`
	WeightKG            float64       `json:"weight_kg"`
	ActivityLevel       ActivityLevel `json:"activity_level"`
	Goal                Goal          `json:"goal"`
	TimelineWeeks       int           `json:"timeline_weeks"`
	DietaryRestrictions []string      `json:"dietary_restrictions"`
	CreatedAt           time.Time     `json:"created_at"`
}

// UserState is the per-user conversation state of the chat presenter.
// TemporaryData holds raw answers until a flow completes.
type UserState struct {
	TelegramID    int64             `json:"telegram_id"`
	CurrentState  string            `json:"current_state"`
	TemporaryData map[string]string `json:"temporary_data"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
