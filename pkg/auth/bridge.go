package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/subscription"
)

// State is the bridge's position in the sign-in lifecycle.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateError          State = "error"
)

// User-facing messages for the mapped provider error codes. Everything
// else surfaces its raw message.
const (
	msgPopupBlocked       = "팝업이 차단되었습니다. 브라우저 설정에서 팝업 차단을 해제해주세요."
	msgUnauthorizedDomain = "현재 도메인이 승인된 도메인 목록에 등록되지 않았습니다. 관리 콘솔에서 추가해주세요."
	msgKakaoSDKMissing    = "카카오 SDK가 로드되지 않았습니다."
	msgKakaoLoginFailed   = "카카오 로그인 중 오류가 발생했습니다."
)

// Bridge unifies the federated and platform sign-in flows into one
// normalized session. It owns the single process-wide subscription to
// provider auth-state changes and is the sole writer of the current
// Session; everyone else reads snapshots.
type Bridge struct {
	provider Provider
	kakao    KakaoSDK
	mintSvc  *MintService
	profiles *ProfileStore
	subs     *subscription.Cache
	log      zerolog.Logger

	kakaoAppKey string

	mu          sync.RWMutex
	session     *domain.Session
	state       State
	authError   string
	subscribers []chan *domain.Session
	closed      bool

	unsubscribe func()
}

type BridgeConfig struct {
	Provider      Provider
	KakaoSDK      KakaoSDK // nil means the platform SDK is not loaded
	KakaoAppKey   string
	MintService   *MintService
	Profiles      *ProfileStore
	Subscriptions *subscription.Cache
	Logger        zerolog.Logger
}

// NewBridge wires the bridge and installs the auth-state listener. Callers
// must Close it at teardown.
func NewBridge(cfg BridgeConfig) *Bridge {
	b := &Bridge{
		provider:    cfg.Provider,
		kakao:       cfg.KakaoSDK,
		mintSvc:     cfg.MintService,
		profiles:    cfg.Profiles,
		subs:        cfg.Subscriptions,
		log:         cfg.Logger.With().Str("component", "auth-bridge").Logger(),
		kakaoAppKey: cfg.KakaoAppKey,
		state:       StateAnonymous,
	}
	b.unsubscribe = cfg.Provider.OnAuthStateChanged(b.onAuthStateChanged)
	return b
}

// SignInWithGoogle runs the federated flow with the ID token the popup
// produced.
func (b *Bridge) SignInWithGoogle(ctx context.Context, idToken string) (*domain.Session, error) {
	b.setState(StateAuthenticating, "")

	cred, err := b.provider.SignInWithGoogle(ctx, idToken)
	if err != nil {
		message := federatedErrorMessage(err)
		b.setState(StateError, message)
		b.log.Error().Err(err).Msg("google sign-in failed")
		return nil, err
	}

	// Profile upsert is fire-and-forget: a storage failure must not fail
	// the login.
	b.upsertProfile(ctx, cred)

	return b.Current(), nil
}

// SignInWithKakao runs the full bridge flow: platform login, profile
// fetch, backend token mint, custom-token exchange.
func (b *Bridge) SignInWithKakao(ctx context.Context) (*domain.Session, error) {
	b.setState(StateAuthenticating, "")

	session, err := b.signInWithKakao(ctx)
	if err != nil {
		b.setState(StateError, bridgeErrorMessage(err))
		b.log.Error().Err(err).Msg("kakao sign-in failed")
		return nil, err
	}
	return session, nil
}

func (b *Bridge) signInWithKakao(ctx context.Context) (*domain.Session, error) {
	if b.kakao == nil {
		return nil, ErrKakaoSDKMissing
	}
	if !b.kakao.IsInitialized() {
		if err := b.kakao.Init(b.kakaoAppKey); err != nil {
			return nil, err
		}
	}

	kakaoAuth, err := b.kakao.Login(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := b.kakao.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}

	customToken, err := b.mintSvc.MintKakaoToken(ctx, MintRequest{
		KakaoAccessToken: kakaoAuth.AccessToken,
		KakaoID:          formatKakaoID(profile.ID),
		Email:            profile.Email,
		DisplayName:      profile.Nickname,
		PhotoURL:         profile.ProfileImageURL,
	})
	if err != nil {
		return nil, err
	}

	cred, err := b.provider.SignInWithCustomToken(ctx, customToken)
	if err != nil {
		return nil, err
	}

	cred.Email = profile.Email
	cred.DisplayName = profile.Nickname
	cred.PhotoURL = profile.ProfileImageURL
	b.upsertProfile(ctx, cred)

	return b.Current(), nil
}

// SignInWithCustomToken completes a bridge login for a client that
// already holds a minted custom token.
func (b *Bridge) SignInWithCustomToken(ctx context.Context, customToken string) (*domain.Session, error) {
	b.setState(StateAuthenticating, "")

	cred, err := b.provider.SignInWithCustomToken(ctx, customToken)
	if err != nil {
		b.setState(StateError, bridgeErrorMessage(err))
		b.log.Error().Err(err).Msg("custom-token sign-in failed")
		return nil, err
	}

	b.upsertProfile(ctx, cred)
	return b.Current(), nil
}

// SignOut destroys the current session.
func (b *Bridge) SignOut(ctx context.Context) error {
	if err := b.provider.SignOut(ctx); err != nil {
		b.log.Error().Err(err).Msg("sign-out failed")
		return err
	}
	b.setState(StateAnonymous, "")
	return nil
}

// Current returns a snapshot of the session, nil when anonymous.
func (b *Bridge) Current() *domain.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// AuthError returns the last user-facing sign-in error message.
func (b *Bridge) AuthError() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.authError
}

// Subscribe returns a channel receiving the session after every
// auth-state transition (nil on sign-out). Slow consumers may miss
// intermediate values.
func (b *Bridge) Subscribe() <-chan *domain.Session {
	ch := make(chan *domain.Session, 8)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Close tears down the auth-state listener and all subscriber channels.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subscribers := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	b.unsubscribe()
	for _, ch := range subscribers {
		close(ch)
	}
}

// onAuthStateChanged is the single listener composing credentials with
// subscription data into the published session.
func (b *Bridge) onAuthStateChanged(cred *Credential) {
	if cred == nil {
		b.mu.Lock()
		b.session = nil
		if b.state != StateError {
			b.state = StateAnonymous
		}
		b.mu.Unlock()
		b.publish(nil)
		return
	}

	sub := b.subs.Fetch(context.Background(), cred.UID)

	session := &domain.Session{
		UID:          cred.UID,
		Provider:     cred.Provider,
		Email:        cred.Email,
		DisplayName:  cred.DisplayName,
		PhotoURL:     cred.PhotoURL,
		Subscription: sub,
		SignedInAt:   time.Now(),
	}

	b.mu.Lock()
	b.session = session
	b.state = StateAuthenticated
	b.authError = ""
	b.mu.Unlock()

	b.log.Info().Str("uid", cred.UID).Str("provider", string(cred.Provider)).Msg("session established")
	b.publish(session)
}

func (b *Bridge) publish(session *domain.Session) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- session:
		default:
		}
	}
}

func (b *Bridge) setState(state State, authError string) {
	b.mu.Lock()
	b.state = state
	b.authError = authError
	b.mu.Unlock()
}

func (b *Bridge) upsertProfile(ctx context.Context, cred *Credential) {
	err := b.profiles.Upsert(ctx, domain.UserProfile{
		UID:         cred.UID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
		Provider:    cred.Provider,
		LastLogin:   time.Now(),
	})
	if err != nil {
		b.log.Warn().Err(err).Str("uid", cred.UID).Msg("profile upsert failed")
	}
}

func federatedErrorMessage(err error) string {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		switch pErr.Code {
		case CodePopupBlocked:
			return msgPopupBlocked
		case CodeUnauthorizedDomain:
			return msgUnauthorizedDomain
		}
		return pErr.Message
	}
	return err.Error()
}

func bridgeErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrKakaoSDKMissing):
		return msgKakaoSDKMissing
	case errors.Is(err, ErrKakaoIDMissing):
		// The backend reported a specific failure, keep it.
		return err.Error()
	default:
		return msgKakaoLoginFailed
	}
}
