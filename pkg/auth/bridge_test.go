package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/haeso-app/haeso-api/pkg/auth"
	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
	"github.com/haeso-app/haeso-api/pkg/subscription"
)

// fakeProvider drives listeners synchronously, like the real provider.
type fakeProvider struct {
	mu        sync.Mutex
	listeners []func(*auth.Credential)

	googleCred *auth.Credential
	googleErr  error

	minter *auth.Minter
}

func (p *fakeProvider) SignInWithGoogle(_ context.Context, _ string) (*auth.Credential, error) {
	if p.googleErr != nil {
		return nil, p.googleErr
	}
	p.notify(p.googleCred)
	return p.googleCred, nil
}

func (p *fakeProvider) SignInWithCustomToken(_ context.Context, token string) (*auth.Credential, error) {
	uid, provider, err := p.minter.VerifyCustomToken(token)
	if err != nil {
		return nil, err
	}
	cred := &auth.Credential{UID: uid, Provider: provider}
	p.notify(cred)
	return cred, nil
}

func (p *fakeProvider) SignOut(_ context.Context) error {
	p.notify(nil)
	return nil
}

func (p *fakeProvider) OnAuthStateChanged(fn func(*auth.Credential)) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.listeners = nil
		p.mu.Unlock()
	}
}

func (p *fakeProvider) notify(cred *auth.Credential) {
	p.mu.Lock()
	listeners := append([]func(*auth.Credential){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(cred)
	}
}

// fakeKakaoSDK implements the platform capability interface.
type fakeKakaoSDK struct {
	initialized bool
	initKey     string
	loginErr    error
	profile     auth.KakaoProfile
}

func (s *fakeKakaoSDK) IsInitialized() bool { return s.initialized }

func (s *fakeKakaoSDK) Init(appKey string) error {
	s.initialized = true
	s.initKey = appKey
	return nil
}

func (s *fakeKakaoSDK) Login(_ context.Context) (*auth.KakaoAuth, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.KakaoAuth{AccessToken: "kakao-access-token"}, nil
}

func (s *fakeKakaoSDK) FetchProfile(_ context.Context) (*auth.KakaoProfile, error) {
	return &s.profile, nil
}

type bridgeFixture struct {
	bridge   *auth.Bridge
	provider *fakeProvider
	sdk      *fakeKakaoSDK
	store    *kvstore.MemoryStore
	profiles *auth.ProfileStore
	remote   *fakeRemoteStore
}

// fakeRemoteStore lets tests control the subscription composed into the
// session.
type fakeRemoteStore struct {
	sub *domain.Subscription
}

func (f *fakeRemoteStore) Get(_ context.Context, _ string) (*domain.Subscription, error) {
	return f.sub, nil
}

func (f *fakeRemoteStore) Put(_ context.Context, _ string, sub *domain.Subscription) error {
	f.sub = sub
	return nil
}

func newBridgeFixture(t *testing.T, sdk *fakeKakaoSDK) *bridgeFixture {
	t.Helper()

	store := kvstore.NewMemoryStore()
	minter := auth.NewMinter("haeso-test", "service-account@haeso-test", []byte("test-signing-key"))
	profiles := auth.NewProfileStore(store)
	remote := &fakeRemoteStore{}
	cache := subscription.NewCache(remote, store, zerolog.Nop())
	provider := &fakeProvider{minter: minter}

	// A nil *fakeKakaoSDK must become a nil interface, not a typed nil.
	var kakaoSDK auth.KakaoSDK
	if sdk != nil {
		kakaoSDK = sdk
	}

	bridge := auth.NewBridge(auth.BridgeConfig{
		Provider:      provider,
		KakaoSDK:      kakaoSDK,
		KakaoAppKey:   "test-app-key",
		MintService:   auth.NewMintService(minter, profiles, zerolog.Nop()),
		Profiles:      profiles,
		Subscriptions: cache,
		Logger:        zerolog.Nop(),
	})
	t.Cleanup(bridge.Close)

	return &bridgeFixture{
		bridge:   bridge,
		provider: provider,
		sdk:      sdk,
		store:    store,
		profiles: profiles,
		remote:   remote,
	}
}

func TestSignInWithKakao(t *testing.T) {
	ctx := context.Background()

	t.Run("full bridge flow produces a canonical session", func(t *testing.T) {
		sdk := &fakeKakaoSDK{profile: auth.KakaoProfile{
			ID:       12345,
			Email:    "user@example.com",
			Nickname: "지현",
		}}
		f := newBridgeFixture(t, sdk)

		session, err := f.bridge.SignInWithKakao(ctx)
		require.NoError(t, err)
		require.NotNil(t, session)
		require.Equal(t, "kakao:12345", session.UID)
		require.Equal(t, domain.AuthProviderKakao, session.Provider)
		require.Equal(t, auth.StateAuthenticated, f.bridge.State())

		// SDK was initialized on demand with the configured app key.
		require.True(t, sdk.initialized)
		require.Equal(t, "test-app-key", sdk.initKey)
	})

	t.Run("second login reuses the identity", func(t *testing.T) {
		sdk := &fakeKakaoSDK{profile: auth.KakaoProfile{ID: 12345, Nickname: "지현"}}
		f := newBridgeFixture(t, sdk)

		first, err := f.bridge.SignInWithKakao(ctx)
		require.NoError(t, err)

		require.NoError(t, f.bridge.SignOut(ctx))

		second, err := f.bridge.SignInWithKakao(ctx)
		require.NoError(t, err)
		require.Equal(t, first.UID, second.UID)

		// Exactly one identity document exists.
		keys, err := f.store.Keys(ctx, "users_")
		require.NoError(t, err)
		require.Len(t, keys, 1)
	})

	t.Run("missing SDK fails with the SDK message", func(t *testing.T) {
		f := newBridgeFixture(t, nil)

		_, err := f.bridge.SignInWithKakao(ctx)
		require.ErrorIs(t, err, auth.ErrKakaoSDKMissing)
		require.Equal(t, auth.StateError, f.bridge.State())
		require.Equal(t, "카카오 SDK가 로드되지 않았습니다.", f.bridge.AuthError())
	})

	t.Run("platform login failure surfaces the generic message", func(t *testing.T) {
		sdk := &fakeKakaoSDK{initialized: true, loginErr: errors.New("user cancelled")}
		f := newBridgeFixture(t, sdk)

		_, err := f.bridge.SignInWithKakao(ctx)
		require.Error(t, err)
		require.Equal(t, "카카오 로그인 중 오류가 발생했습니다.", f.bridge.AuthError())
		require.Nil(t, f.bridge.Current())
	})
}

func TestSignInWithGoogle(t *testing.T) {
	ctx := context.Background()

	t.Run("successful sign-in publishes the session", func(t *testing.T) {
		f := newBridgeFixture(t, nil)
		f.provider.googleCred = &auth.Credential{
			UID:         "google-uid-1",
			Provider:    domain.AuthProviderGoogle,
			Email:       "user@example.com",
			DisplayName: "User",
		}

		updates := f.bridge.Subscribe()

		session, err := f.bridge.SignInWithGoogle(ctx, "id-token")
		require.NoError(t, err)
		require.Equal(t, "google-uid-1", session.UID)
		require.Equal(t, auth.StateAuthenticated, f.bridge.State())

		published := <-updates
		require.Equal(t, "google-uid-1", published.UID)

		// Profile was upserted as part of the login.
		profile, err := f.profiles.Get(ctx, "google-uid-1")
		require.NoError(t, err)
		require.NotNil(t, profile)
		require.Equal(t, "user@example.com", profile.Email)
	})

	t.Run("popup blocked maps to its message", func(t *testing.T) {
		f := newBridgeFixture(t, nil)
		f.provider.googleErr = &auth.ProviderError{Code: auth.CodePopupBlocked, Message: "popup blocked"}

		_, err := f.bridge.SignInWithGoogle(ctx, "id-token")
		require.Error(t, err)
		require.Equal(t, auth.StateError, f.bridge.State())
		require.Contains(t, f.bridge.AuthError(), "팝업이 차단되었습니다")
	})

	t.Run("other provider errors surface raw", func(t *testing.T) {
		f := newBridgeFixture(t, nil)
		f.provider.googleErr = errors.New("network unreachable")

		_, err := f.bridge.SignInWithGoogle(ctx, "id-token")
		require.Error(t, err)
		require.Equal(t, "network unreachable", f.bridge.AuthError())
	})
}

func TestSessionComposesSubscription(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t, nil)
	f.remote.sub = &domain.Subscription{IsActive: true, Plan: domain.SubscriptionPlanPremium}
	f.provider.googleCred = &auth.Credential{UID: "google-uid-1", Provider: domain.AuthProviderGoogle}

	session, err := f.bridge.SignInWithGoogle(ctx, "id-token")
	require.NoError(t, err)
	require.NotNil(t, session.Subscription)
	require.Equal(t, domain.SubscriptionPlanPremium, session.Subscription.Plan)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := newBridgeFixture(t, nil)
	f.provider.googleCred = &auth.Credential{UID: "google-uid-1", Provider: domain.AuthProviderGoogle}

	_, err := f.bridge.SignInWithGoogle(ctx, "id-token")
	require.NoError(t, err)
	require.NotNil(t, f.bridge.Current())

	updates := f.bridge.Subscribe()
	require.NoError(t, f.bridge.SignOut(ctx))
	require.Nil(t, f.bridge.Current())
	require.Equal(t, auth.StateAnonymous, f.bridge.State())
	require.Nil(t, <-updates)
}

func TestCloseTearsDownSubscribers(t *testing.T) {
	f := newBridgeFixture(t, nil)
	updates := f.bridge.Subscribe()

	f.bridge.Close()

	_, open := <-updates
	require.False(t, open)

	// Closing twice is safe.
	f.bridge.Close()

	// Subscribing after Close yields an already-closed channel instead of
	// one no consumer could ever drain.
	late := f.bridge.Subscribe()
	_, open = <-late
	require.False(t, open)
}
