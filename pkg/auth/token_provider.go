package auth

import (
	"context"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/haeso-app/haeso-api/internal/jwkscache"
	"github.com/haeso-app/haeso-api/pkg/domain"
)

// GoogleCertsURL is the JWKS endpoint federated ID tokens are verified
// against.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// TokenProvider is the production Provider: Google sign-ins are verified
// against the provider JWKS, custom tokens against the minting key. It
// also owns the process-wide auth-state listener registry.
type TokenProvider struct {
	jwks   *jwkscache.Cache
	minter *Minter

	mu        sync.RWMutex
	current   *Credential
	listeners map[int]func(*Credential)
	nextID    int
}

func NewTokenProvider(jwks *jwkscache.Cache, minter *Minter) *TokenProvider {
	return &TokenProvider{
		jwks:      jwks,
		minter:    minter,
		listeners: make(map[int]func(*Credential)),
	}
}

func (p *TokenProvider) SignInWithGoogle(ctx context.Context, idToken string) (*Credential, error) {
	token, err := p.parseIDToken(idToken, false)
	if err != nil || !token.Valid {
		// The key set may have rotated since it was cached.
		token, err = p.parseIDToken(idToken, true)
		if err != nil || !token.Valid {
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	cred := &Credential{
		UID:         sub,
		Provider:    domain.AuthProviderGoogle,
		Email:       email,
		DisplayName: name,
		PhotoURL:    picture,
	}
	p.setCurrent(cred)
	return cred, nil
}

func (p *TokenProvider) SignInWithCustomToken(ctx context.Context, customToken string) (*Credential, error) {
	uid, provider, err := p.minter.VerifyCustomToken(customToken)
	if err != nil {
		return nil, err
	}

	cred := &Credential{UID: uid, Provider: provider}
	p.setCurrent(cred)
	return cred, nil
}

func (p *TokenProvider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

func (p *TokenProvider) OnAuthStateChanged(fn func(*Credential)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *TokenProvider) parseIDToken(idToken string, forceRefresh bool) (*jwt.Token, error) {
	return jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return p.jwks.Key(token, forceRefresh)
	})
}

func (p *TokenProvider) setCurrent(cred *Credential) {
	p.mu.Lock()
	p.current = cred
	listeners := make([]func(*Credential), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(cred)
	}
}
