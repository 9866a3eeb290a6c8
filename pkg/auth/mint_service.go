package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/domain"
)

// MintRequest carries the platform token and profile fields the client
// forwards after a platform login.
type MintRequest struct {
	KakaoAccessToken string
	KakaoID          string
	Email            string
	DisplayName      string
	PhotoURL         string
}

// MintService is the backend half of the bridge flow: it validates the
// platform identity, ensures a canonical user exists for it, and issues a
// signed custom token.
type MintService struct {
	minter   *Minter
	profiles *ProfileStore
	log      zerolog.Logger
}

func NewMintService(minter *Minter, profiles *ProfileStore, log zerolog.Logger) *MintService {
	return &MintService{
		minter:   minter,
		profiles: profiles,
		log:      log.With().Str("component", "mint").Logger(),
	}
}

// MintKakaoToken returns a custom token for the canonical "kakao:<id>"
// identity, creating the identity on first login and reusing it afterwards.
func (s *MintService) MintKakaoToken(ctx context.Context, req MintRequest) (string, error) {
	if req.KakaoID == "" {
		return "", ErrKakaoIDMissing
	}

	uid := KakaoUID(req.KakaoID)

	existing, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if existing == nil {
		err := s.profiles.Upsert(ctx, domain.UserProfile{
			UID:         uid,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			PhotoURL:    req.PhotoURL,
			Provider:    domain.AuthProviderKakao,
			LastLogin:   time.Now(),
		})
		if err != nil {
			return "", err
		}
		s.log.Info().Str("uid", uid).Msg("created kakao identity")
	}

	return s.minter.MintCustomToken(uid, domain.AuthProviderKakao)
}
