package auth

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrKakaoSDKMissing = errors.New("kakao SDK is not loaded")
	ErrKakaoIDMissing  = errors.New("kakao id is required")
)

// KakaoAuth is the result of a platform login.
type KakaoAuth struct {
	AccessToken string
}

// KakaoProfile is the platform user profile. Email and profile fields are
// optional consents and may be empty.
type KakaoProfile struct {
	ID              int64
	Email           string
	Nickname        string
	ProfileImageURL string
}

// KakaoSDK is the capability interface over the platform SDK. The bridge
// never touches a global namespace; a nil SDK means the platform script
// was not loaded.
type KakaoSDK interface {
	IsInitialized() bool
	Init(appKey string) error
	Login(ctx context.Context) (*KakaoAuth, error)
	FetchProfile(ctx context.Context) (*KakaoProfile, error)
}

// KakaoUID derives the canonical provider-namespaced identity from a
// platform id. Logins with the same platform id always map to the same
// identity.
func KakaoUID(kakaoID string) string {
	return "kakao:" + kakaoID
}

// formatKakaoID renders the numeric id the SDK reports as the string form
// used in canonical uids.
func formatKakaoID(kakaoID int64) string {
	return strconv.FormatInt(kakaoID, 10)
}
