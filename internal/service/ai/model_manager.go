package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/util"
	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

// ModelManager routes oracle prompts to Gemini, falling back to OpenAI when
// Gemini fails and a fallback key is configured. A shared circuit breaker
// keeps the background jobs from hammering a failing provider.
type ModelManager struct {
	geminiClient   *genai.Client
	openaiClient   *openai.Client
	logger         *zap.Logger
	geminiModel    string
	openaiModel    string
	enableFallback bool
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	GeminiAPIKey   string
	OpenAIAPIKey   string
	GeminiModel    string
	OpenAIModel    string
	EnableFallback bool
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	geminiModel := cfg.GeminiModel
	if geminiModel == "" {
		geminiModel = "gemini-2.5-flash"
	}
	openaiModel := cfg.OpenAIModel
	if openaiModel == "" {
		openaiModel = "gpt-5-mini"
	}

	mm := &ModelManager{
		geminiClient:   geminiClient,
		logger:         logger,
		geminiModel:    geminiModel,
		openaiModel:    openaiModel,
		enableFallback: cfg.EnableFallback && cfg.OpenAIAPIKey != "",
		circuitBreaker: util.NewCircuitBreaker(
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		),
	}

	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		mm.openaiClient = &client
		logger.Info("OpenAI fallback enabled", zap.String("model", openaiModel))
	} else {
		logger.Info("OpenAI fallback disabled (no API key)")
	}

	return mm, nil
}

// GenerateText sends the prompt and returns the raw text. With jsonMode the
// providers are asked for JSON output, but callers still validate the result
// since models do not always comply.
func (mm *ModelManager) GenerateText(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		return "", fmt.Errorf("oracle circuit open after %d failures", status.FailureCount)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.OracleConfig.RequestTimeout)
	defer cancel()

	text, geminiErr := mm.generateWithGemini(ctx, prompt, jsonMode)
	if geminiErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return text, nil
	}

	if mm.enableFallback && mm.openaiClient != nil {
		text, openaiErr := mm.generateWithOpenAI(ctx, prompt, jsonMode)
		if openaiErr == nil {
			mm.circuitBreaker.RecordSuccess()
			return text, nil
		}
		mm.recordFailure(geminiErr, openaiErr)
		return "", fmt.Errorf("all oracle providers failed: gemini: %v; openai: %v", geminiErr, openaiErr)
	}

	mm.recordFailure(geminiErr, nil)
	return "", geminiErr
}

func (mm *ModelManager) recordFailure(errs ...error) {
	serviceFailure := false
	timeout := constants.CircuitBreakerConfig.ResetTimeout
	for _, err := range errs {
		if isServiceFailure(err) {
			serviceFailure = true
		}
		if isRateLimitError(err) {
			timeout = constants.CircuitBreakerConfig.RateLimitTimeout
		}
	}
	if serviceFailure {
		mm.circuitBreaker.RecordFailure(timeout)
	}
}

func (mm *ModelManager) generateWithGemini(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	temperature := constants.OracleConfig.Temperature

	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: constants.OracleConfig.MaxOutputTokens,
	}
	if jsonMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	mm.logger.Debug("generating with Gemini",
		zap.String("model", mm.geminiModel),
		zap.Bool("jsonMode", jsonMode),
		zap.Int("promptLength", len(prompt)))

	resp, err := mm.geminiClient.Models.GenerateContent(ctx, mm.geminiModel, []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}, genConfig)
	if err != nil {
		mm.logger.Error("Gemini generation failed", zap.Error(err))
		return "", err
	}

	text := extractTextFromGeminiResponse(resp)
	if text == "" {
		return "", errors.NewMalformedResponseError("empty response from Gemini", "", nil)
	}
	return text, nil
}

func (mm *ModelManager) generateWithOpenAI(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if mm.openaiClient == nil {
		return "", fmt.Errorf("OpenAI client not initialized")
	}

	mm.logger.Info("fallback: generating with OpenAI",
		zap.String("model", mm.openaiModel))

	var model openai.ChatModel
	switch mm.openaiModel {
	case "gpt-5-mini":
		model = openai.ChatModelGPT5Mini
	case "gpt-5":
		model = openai.ChatModelGPT5
	case "gpt-5-nano":
		model = openai.ChatModelGPT5Nano
	case "gpt-4.1":
		model = openai.ChatModelGPT4_1
	case "gpt-4.1-mini":
		model = openai.ChatModelGPT4_1Mini
	case "gpt-4o":
		model = openai.ChatModelGPT4o
	case "gpt-4o-mini":
		model = openai.ChatModelGPT4oMini
	default:
		model = openai.ChatModelGPT4_1
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}
	if jsonMode {
		messages = []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You must respond with valid JSON only. Do not include any text outside the JSON object."),
			openai.UserMessage(prompt),
		}
	}

	isGPT5 := strings.HasPrefix(mm.openaiModel, "gpt-5")

	params := openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(constants.OracleConfig.MaxOutputTokens)),
	}
	if !isGPT5 {
		params.Temperature = openai.Float(float64(constants.OracleConfig.Temperature))
	}

	resp, err := mm.openaiClient.Chat.Completions.New(ctx, params)
	if err != nil {
		mm.logger.Error("OpenAI generation failed", zap.Error(err))
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.NewMalformedResponseError("no choices in OpenAI response", "", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (mm *ModelManager) CircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.Status()
}

func extractTextFromGeminiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "")
}

var (
	statusCodeRe    = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRe    = regexp.MustCompile(`"code":(\d{3})`)
	leadingStatusRe = regexp.MustCompile(`^(\d{3})\s`)
)

func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return true
	}
	if isRateLimitError(err) {
		return true
	}
	if statusCodeRe.MatchString(msg) {
		return true
	}
	if matches := geminiCodeRe.FindStringSubmatch(msg); len(matches) > 1 {
		if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
			return code >= 500 && code < 600
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}
	if matches := leadingStatusRe.FindStringSubmatch(msg); len(matches) > 1 {
		if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
			return code == 429
		}
	}
	return false
}
