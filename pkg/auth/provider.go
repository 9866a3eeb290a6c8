package auth

import (
	"context"
	"errors"

	"github.com/haeso-app/haeso-api/pkg/domain"
)

// Credential is the identity-provider-issued result of a successful
// sign-in, before the bridge composes it with subscription data.
type Credential struct {
	UID         string
	Provider    domain.AuthProvider
	Email       string
	DisplayName string
	PhotoURL    string
}

// Provider error codes that get dedicated user-facing messages. Any other
// provider failure surfaces its raw message.
const (
	CodePopupBlocked       = "auth/popup-blocked"
	CodeUnauthorizedDomain = "auth/unauthorized-domain"
)

// ProviderError is a coded failure from the identity provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Provider abstracts the hosted identity service. It is the sole issuer of
// credentials; the bridge never talks to provider endpoints directly.
type Provider interface {
	// SignInWithGoogle verifies a federated ID token obtained from the
	// provider's popup flow and establishes a credential.
	SignInWithGoogle(ctx context.Context, idToken string) (*Credential, error)
	// SignInWithCustomToken exchanges a backend-minted custom token for a
	// credential.
	SignInWithCustomToken(ctx context.Context, customToken string) (*Credential, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChanged registers a listener invoked with the credential
	// on every sign-in and with nil on sign-out. Returns the unsubscribe
	// function.
	OnAuthStateChanged(fn func(*Credential)) func()
}
