// Package access holds the pure mode/speech gating rules. No side effects;
// callers pass the current session snapshot and clock reading.
package access

import (
	"time"

	"github.com/haeso-app/haeso-api/pkg/domain"
)

// Denial distinguishes the two user-facing refusal flows: an anonymous
// caller is prompted to sign in, an authenticated one to upgrade.
type Denial string

const (
	DenialNone            Denial = ""
	DenialSignInRequired  Denial = "sign_in_required"
	DenialPremiumRequired Denial = "premium_required"
)

// CanAccessMode reports whether the session may request the given
// intensity mode. Light is open to everyone, hard needs any session,
// very_hard needs a premium subscription. Unknown modes are refused.
func CanAccessMode(mode domain.Mode, session *domain.Session, now time.Time) bool {
	switch mode {
	case domain.ModeLight:
		return true
	case domain.ModeHard:
		return session != nil
	case domain.ModeVeryHard:
		return sessionIsPremium(session, now)
	default:
		return false
	}
}

// CanAccessSpeech reports whether speech synthesis is allowed. Speech is
// premium-gated, except that light-mode results are exempt.
func CanAccessSpeech(mode domain.Mode, session *domain.Session, now time.Time) bool {
	if mode == domain.ModeLight {
		return true
	}
	return sessionIsPremium(session, now)
}

// CheckMode is CanAccessMode plus the denial reason for routing.
func CheckMode(mode domain.Mode, session *domain.Session, now time.Time) (bool, Denial) {
	if CanAccessMode(mode, session, now) {
		return true, DenialNone
	}
	return false, denialFor(session)
}

// CheckSpeech is CanAccessSpeech plus the denial reason for routing.
func CheckSpeech(mode domain.Mode, session *domain.Session, now time.Time) (bool, Denial) {
	if CanAccessSpeech(mode, session, now) {
		return true, DenialNone
	}
	return false, denialFor(session)
}

func denialFor(session *domain.Session) Denial {
	if session == nil {
		return DenialSignInRequired
	}
	return DenialPremiumRequired
}

func sessionIsPremium(session *domain.Session, now time.Time) bool {
	if session == nil {
		return false
	}
	return session.Subscription.IsPremium(now)
}
