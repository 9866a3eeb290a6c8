package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/access"
	"github.com/haeso-app/haeso-api/pkg/auth"
	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/history"
	appmw "github.com/haeso-app/haeso-api/pkg/middleware"
	"github.com/haeso-app/haeso-api/pkg/service/emotion"
	"github.com/haeso-app/haeso-api/pkg/subscription"
	"github.com/haeso-app/haeso-api/pkg/usage"
)

type GenerateRequest struct {
	UserInput string `json:"userInput" validate:"required"`
	Mode      string `json:"mode" validate:"required"`
}

type GenerateResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type TTSRequest struct {
	Text  string `json:"text" validate:"required"`
	Voice string `json:"voice,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

type KakaoAuthRequest struct {
	KakaoAccessToken string `json:"kakaoAccessToken"`
	KakaoID          string `json:"kakaoId"`
	Email            string `json:"email,omitempty"`
	DisplayName      string `json:"displayName,omitempty"`
	PhotoURL         string `json:"photoURL,omitempty"`
}

type GoogleAuthRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type SessionTokenRequest struct {
	CustomToken string `json:"customToken" validate:"required"`
}

type SessionResponse struct {
	Session   *domain.Session `json:"session"`
	State     string          `json:"state"`
	AuthError string          `json:"authError,omitempty"`
}

type UsageResponse struct {
	Counts    map[domain.Feature]int `json:"counts"`
	Remaining map[domain.Feature]int `json:"remaining"`
	Limits    map[domain.Feature]int `json:"limits"`
}

// User-facing denial messages.
const (
	msgModeSignInRequired    = "이 감정 강도를 사용하려면 로그인이 필요합니다."
	msgModePremiumRequired   = "이 감정 강도는 프리미엄 구독자만 이용할 수 있습니다."
	msgSpeechSignInRequired  = "음성 기능을 사용하려면 로그인이 필요합니다."
	msgSpeechPremiumRequired = "음성 기능은 프리미엄 구독자만 이용할 수 있습니다."
)

const denialUsageLimit = "usage_limit_reached"

type Handler struct {
	service    emotion.Service
	bridge     *auth.Bridge
	mintSvc    *auth.MintService
	accountant *usage.Accountant
	history    *history.Store
	payments   *subscription.Processor
	validate   *validator.Validate
	limiter    *appmw.RateLimiter
	log        zerolog.Logger
}

type HandlerConfig struct {
	Service    emotion.Service
	Bridge     *auth.Bridge
	Mint       *auth.MintService
	Accountant *usage.Accountant
	History    *history.Store
	Payments   *subscription.Processor
	Logger     zerolog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:    cfg.Service,
		bridge:     cfg.Bridge,
		mintSvc:    cfg.Mint,
		accountant: cfg.Accountant,
		history:    cfg.History,
		payments:   cfg.Payments,
		validate:   validator.New(),
		limiter:    appmw.NewRateLimiter(5, 10),
		log:        cfg.Logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appmw.Metrics)
	r.Use(h.limiter.Handler)

	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints
		r.Post("/auth/google", h.HandleGoogleAuth)
		r.Post("/auth/kakao", h.HandleKakaoAuth)
		r.Post("/auth/session", h.HandleSessionToken)
		r.Post("/auth/signout", h.HandleSignOut)
		r.Get("/session", h.HandleGetSession)

		// Generation endpoints
		r.Post("/generate", h.HandleGenerate)
		r.Post("/tts", h.HandleTTS)

		// Account endpoints
		r.Post("/subscribe", h.HandleSubscribe)
		r.Get("/usage", h.HandleGetUsage)
		r.Get("/history", h.HandleGetHistory)
		r.Delete("/history/{id}", h.HandleDeleteHistoryItem)
		r.Delete("/history", h.HandleClearHistory)
	})

	return r
}

// HandleGenerate is the generation orchestrator: access policy, usage
// accounting, upstream dispatch, history append, in that order.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	mode := domain.Mode(req.Mode)
	session := h.bridge.Current()

	if allowed, denial := access.CheckMode(mode, session, time.Now()); !allowed {
		h.respondWithDenial(w, denial, msgModeSignInRequired, msgModePremiumRequired)
		return
	}

	if !h.recordUsage(w, r, session, domain.FeatureGPT) {
		return
	}

	result, err := h.service.Generate(r.Context(), req.UserInput, mode)
	if err != nil {
		h.respondWithUpstreamError(w, err)
		return
	}

	if _, err := h.history.Append(r.Context(), identityOf(session), req.UserInput, mode, result); err != nil {
		// History is best effort; the generation already succeeded.
		h.log.Warn().Err(err).Msg("appending history entry")
	}

	respondWithJSON(w, http.StatusOK, GenerateResponse{Response: result})
}

// HandleTTS synthesizes speech for a generated result. Speech is premium
// gated except for light-mode results.
func (h *Handler) HandleTTS(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing required text field")
		return
	}

	session := h.bridge.Current()

	if allowed, denial := access.CheckSpeech(domain.Mode(req.Mode), session, time.Now()); !allowed {
		h.respondWithDenial(w, denial, msgSpeechSignInRequired, msgSpeechPremiumRequired)
		return
	}

	if !h.recordUsage(w, r, session, domain.FeatureTTS) {
		return
	}

	audio, err := h.service.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		h.respondWithUpstreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (h *Handler) HandleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "idToken is required")
		return
	}

	session, err := h.bridge.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		message := h.bridge.AuthError()
		if message == "" {
			message = "Invalid or expired token"
		}
		respondWithError(w, http.StatusUnauthorized, message)
		return
	}

	respondWithJSON(w, http.StatusOK, SessionResponse{Session: session, State: string(h.bridge.State())})
}

// HandleKakaoAuth is the bridge-login mint endpoint: platform token and
// profile in, signed custom token out.
func (h *Handler) HandleKakaoAuth(w http.ResponseWriter, r *http.Request) {
	var req KakaoAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customToken, err := h.mintSvc.MintKakaoToken(r.Context(), auth.MintRequest{
		KakaoAccessToken: req.KakaoAccessToken,
		KakaoID:          req.KakaoID,
		Email:            req.Email,
		DisplayName:      req.DisplayName,
		PhotoURL:         req.PhotoURL,
	})
	if err != nil {
		if errors.Is(err, auth.ErrKakaoIDMissing) {
			respondWithError(w, http.StatusBadRequest, "카카오 ID가 필요합니다.")
			return
		}
		h.log.Error().Err(err).Msg("kakao token mint failed")
		respondWithError(w, http.StatusInternalServerError, "인증 처리 중 오류가 발생했습니다.")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"customToken": customToken})
}

// HandleSessionToken exchanges a minted custom token for a session,
// completing the bridge flow.
func (h *Handler) HandleSessionToken(w http.ResponseWriter, r *http.Request) {
	var req SessionTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "customToken is required")
		return
	}

	session, err := h.bridge.SignInWithCustomToken(r.Context(), req.CustomToken)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	respondWithJSON(w, http.StatusOK, SessionResponse{Session: session, State: string(h.bridge.State())})
}

func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.SignOut(r.Context()); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{Session: nil, State: string(h.bridge.State())})
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, SessionResponse{
		Session:   h.bridge.Current(),
		State:     string(h.bridge.State()),
		AuthError: h.bridge.AuthError(),
	})
}

func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := h.payments.ProcessPremiumSubscription(r.Context(), h.bridge.Current())
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrSignInRequired):
			respondWithError(w, http.StatusUnauthorized, "결제를 진행하려면 먼저 로그인해주세요.")
		case errors.Is(err, subscription.ErrAlreadyProcessing):
			respondWithError(w, http.StatusConflict, "결제가 이미 진행 중입니다.")
		default:
			respondWithError(w, http.StatusInternalServerError, "결제 처리 중 오류가 발생했습니다. 다시 시도해주세요.")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	identity := identityOf(h.bridge.Current())
	resp := UsageResponse{
		Counts:    make(map[domain.Feature]int),
		Remaining: make(map[domain.Feature]int),
		Limits:    make(map[domain.Feature]int),
	}
	for _, feature := range []domain.Feature{domain.FeatureGPT, domain.FeatureTTS} {
		count, err := h.accountant.Count(r.Context(), identity, feature)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		remaining, err := h.accountant.Remaining(r.Context(), identity, feature)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		resp.Counts[feature] = count
		resp.Remaining[feature] = remaining
		resp.Limits[feature] = h.accountant.Limit(r.Context(), feature)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.List(r.Context(), identityOf(h.bridge.Current()))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleDeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.history.Remove(r.Context(), identityOf(h.bridge.Current()), id); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "History item deleted"})
}

func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context(), identityOf(h.bridge.Current())); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

// recordUsage runs the usage accountant and writes the denial response
// itself when the daily limit is exhausted. Returns whether to proceed.
func (h *Handler) recordUsage(w http.ResponseWriter, r *http.Request, session *domain.Session, feature domain.Feature) bool {
	allowed, err := h.accountant.RecordAndCheck(r.Context(), identityOf(session), feature)
	if err != nil {
		h.log.Error().Err(err).Msg("usage accounting failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	if !allowed {
		respondWithJSON(w, http.StatusForbidden, GenerateResponse{
			Error:  fmt.Sprintf("오늘의 %s 사용 한도를 초과했습니다.", strings.ToUpper(string(feature))),
			Reason: denialUsageLimit,
		})
		return false
	}
	return true
}

// respondWithDenial routes the two denial causes to their user-facing
// flows: sign-in prompt vs upgrade prompt.
func (h *Handler) respondWithDenial(w http.ResponseWriter, denial access.Denial, signInMsg, premiumMsg string) {
	switch denial {
	case access.DenialSignInRequired:
		respondWithJSON(w, http.StatusUnauthorized, GenerateResponse{Error: signInMsg, Reason: string(denial)})
	default:
		respondWithJSON(w, http.StatusForbidden, GenerateResponse{Error: premiumMsg, Reason: string(denial)})
	}
}

func (h *Handler) respondWithUpstreamError(w http.ResponseWriter, err error) {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		respondWithError(w, upstream.Status, upstream.Message)
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to generate response")
}

func identityOf(session *domain.Session) string {
	if session == nil {
		return usage.AnonymousIdentity
	}
	return session.UID
}

// Helper functions for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, GenerateResponse{Error: message})
}
