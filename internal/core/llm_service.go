package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/logging"
)

const (
	defaultCommentaryModelName = "gemini-1.5-flash-latest"

	commentarySystemInstruction = "You are Phi, a calm market-prediction assistant. " +
		"Give a short, plain-language comment on what the user asked about. " +
		"Do not invent numbers or probabilities; a separate model supplies those. " +
		"Answer in at most three sentences."
)

// LLMService produces free-form commentary through Gemini.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// NewLLMService connects to Gemini. Without an API key the service is still
// returned, and every call fails with config.ErrMissingCredential.
func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*LLMService, error) {
	if modelName == "" {
		modelName = defaultCommentaryModelName
	}
	s := &LLMService{modelName: modelName, logger: logging.OrNop(logger).Named("llm")}
	if apiKey == "" {
		return s, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *LLMService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("error closing GenAI client", zap.Error(err))
	}
}

// Comment answers message in free text. It is never retried.
func (s *LLMService) Comment(ctx context.Context, message string) (string, error) {
	if s.client == nil {
		return "", config.MissingCredential("GEMINI_API_KEY")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is empty")
	}

	model := s.client.GenerativeModel(s.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(commentarySystemInstruction)},
	}
	temp := float32(0.7)
	maxTokens := int32(256)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini commentary request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			reply.WriteString(string(txt))
		} else {
			s.logger.Debug("skipping non-text response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if strings.TrimSpace(reply.String()) == "" {
		return "", errors.New("gemini returned an empty reply")
	}
	return strings.TrimSpace(reply.String()), nil
}
