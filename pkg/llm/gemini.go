package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"vyapar-go/internal/config"
)

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	cfg    config.LLMConfig
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// prepareChat 把消息列表拆分为 system 指令、历史和最后一条用户消息。
func (c *GeminiClient) prepareChat(messages []Message, gen *GenerationParams) (*genai.ChatSession, genai.Part, error) {
	system, history, last, err := splitForGemini(messages)
	if err != nil {
		return nil, nil, err
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if gen == nil {
		gen = GenerationFromConfig(c.cfg.Generation)
	}
	if gen != nil {
		if gen.Temperature != nil {
			model.SetTemperature(float32(*gen.Temperature))
		}
		if gen.TopP != nil {
			model.SetTopP(float32(*gen.TopP))
		}
		if gen.MaxTokens != nil {
			model.SetMaxOutputTokens(int32(*gen.MaxTokens))
		}
	}

	cs := model.StartChat()
	cs.History = history
	return cs, genai.Text(last), nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	cs, last, err := c.prepareChat(messages, gen)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, last)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractText(resp), nil
}

func (c *GeminiClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	cs, last, err := c.prepareChat(messages, gen)
	if err != nil {
		return err
	}
	iter := cs.SendMessageStream(ctx, last)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read from stream: %w", err)
		}
		if text := extractText(resp); text != "" {
			if err := writer.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return fmt.Errorf("failed to write stream chunk: %w", err)
			}
		}
	}
}

// splitForGemini 将 OpenAI 风格的消息转换为 Gemini 的对话结构。
// 多条 system 消息合并为一条指令；最后一条消息必须来自用户。
func splitForGemini(messages []Message) (system string, history []*genai.Content, last string, err error) {
	var systems []string
	var turns []Message
	for _, m := range messages {
		if m.Role == "system" {
			systems = append(systems, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return "", nil, "", fmt.Errorf("last message must come from the user")
	}

	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(systems, "\n\n"), history, turns[len(turns)-1].Content, nil
}

// extractText extracts text from a Gemini API response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
