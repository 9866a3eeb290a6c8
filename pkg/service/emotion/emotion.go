// Package emotion calls the upstream model for stylized emotional-expression
// text and speech synthesis.
package emotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/haeso-app/haeso-api/pkg/domain"
)

// Service is the external generation/speech boundary. Failures are always
// *domain.UpstreamError.
type Service interface {
	Generate(ctx context.Context, userInput string, mode domain.Mode) (string, error)
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// DefaultVoice is the neutral voice used when the caller names none.
const DefaultVoice = "alloy"

// Voices is the fixed set the speech endpoint accepts.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

type GPTService struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewGPTService(apiKey string) *GPTService {
	return &GPTService{
		client:      openai.NewClient(apiKey),
		model:       openai.GPT3Dot5Turbo,
		temperature: 0.8,
		maxTokens:   200,
	}
}

// Generate produces a short (2-3 sentence) Korean response in the mode's
// emotional register. Unknown modes fall back to the neutral instruction
// rather than erroring.
func (s *GPTService) Generate(ctx context.Context, userInput string, mode domain.Mode) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a helpful assistant that responds in Korean.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildPrompt(userInput, mode),
				},
			},
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
		},
	)
	if err != nil {
		return "", upstreamError(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUpstreamError("no response generated", http.StatusInternalServerError)
	}

	return resp.Choices[0].Message.Content, nil
}

// Synthesize returns encoded audio for the text. An empty or unknown voice
// becomes DefaultVoice.
func (s *GPTService) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(NormalizeVoice(voice)),
	})
	if err != nil {
		return nil, upstreamError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, domain.NewUpstreamError(fmt.Sprintf("reading audio stream: %v", err), http.StatusInternalServerError)
	}
	return audio, nil
}

// NormalizeVoice maps the requested voice onto the fixed set.
func NormalizeVoice(voice string) string {
	for _, v := range Voices {
		if v == voice {
			return v
		}
	}
	return DefaultVoice
}

func buildPrompt(userInput string, mode domain.Mode) string {
	var modeInstruction string
	switch mode {
	case domain.ModeLight:
		modeInstruction = "풍자적이고 유머를 섞은 말투로 부드럽게 표현해 주세요."
	case domain.ModeHard:
		modeInstruction = "직설적이고 감정이 실린 말투로 불쾌한 감정을 표현해 주세요."
	case domain.ModeVeryHard:
		modeInstruction = "강한 분노를 담은 말투로 과감하고 솔직하게 표현해 주세요. 단, 창의적으로 표현해주세요."
	default:
		modeInstruction = "적절한 감정 표현으로 상황을 설명해 주세요."
	}

	return fmt.Sprintf(`
당신은 감정을 해소하는 감정 대변 작가입니다.
사용자의 상황을 듣고, 그 상황에 적절한 감정 말투(%s)로 응답하세요.
%s

상황: %s

응답은 사람 말투로, 2~3문장으로 자연스럽고 강렬하게 써주세요.
`, mode, modeInstruction, userInput)
}

// upstreamError extracts message and status from the provider error shape,
// falling back to generic text and 500 when it is unstructured.
func upstreamError(err error) *domain.UpstreamError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewUpstreamError("OpenAI API error: "+apiErr.Message, apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewUpstreamError("OpenAI API error: "+reqErr.Error(), reqErr.HTTPStatusCode)
	}

	return domain.NewUpstreamError(err.Error(), http.StatusInternalServerError)
}
