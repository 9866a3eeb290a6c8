package domain

import (
	"time"
)

type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
	AuthProviderKakao  AuthProvider = "kakao"
)

// Mode is one of the three ordered emotion-intensity levels a generation
// can be requested at.
type Mode string

const (
	ModeLight    Mode = "light"
	ModeHard     Mode = "hard"
	ModeVeryHard Mode = "very_hard"
)

// Feature names a quota-limited capability.
type Feature string

const (
	FeatureGPT Feature = "gpt"
	FeatureTTS Feature = "tts"
)

type SubscriptionPlan string

const (
	SubscriptionPlanFree    SubscriptionPlan = "free"
	SubscriptionPlanPremium SubscriptionPlan = "premium"
)

// Subscription is a user's premium-subscription record. ExpiresAt == nil
// means the subscription never expires.
type Subscription struct {
	IsActive  bool             `json:"isActive"`
	Plan      SubscriptionPlan `json:"plan"`
	ExpiresAt *time.Time       `json:"expiresAt"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

// IsPremium reports whether the record grants premium access right now.
// The expiry comparison is strict: a subscription expiring exactly at the
// current instant is no longer premium.
func (s *Subscription) IsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	if !s.IsActive || s.Plan != SubscriptionPlanPremium {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Session is the in-memory representation of the currently signed-in
// identity plus its subscription snapshot. The UID is provider-namespaced
// ("kakao:12345" for bridge logins, the provider-issued uid otherwise).
type Session struct {
	UID          string        `json:"uid"`
	Provider     AuthProvider  `json:"provider"`
	Email        string        `json:"email,omitempty"`
	DisplayName  string        `json:"displayName,omitempty"`
	PhotoURL     string        `json:"photoURL,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
	SignedInAt   time.Time     `json:"signedInAt"`
}

// HistoryEntry is a single completed generation, newest entries first in
// storage.
type HistoryEntry struct {
	ID        string    `json:"id"`
	UserInput string    `json:"userInput"`
	Mode      Mode      `json:"mode"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserProfile is the document upserted on every successful sign-in.
type UserProfile struct {
	UID         string       `json:"uid"`
	Email       string       `json:"email,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	PhotoURL    string       `json:"photoURL,omitempty"`
	Provider    AuthProvider `json:"provider"`
	LastLogin   time.Time    `json:"lastLogin"`
}
