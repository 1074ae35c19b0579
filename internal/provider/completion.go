package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"reportchat/internal/config"
)

// CompletionClient issues single-shot completions (summaries, suggested
// questions) against whichever chat model the deployment configures.
type CompletionClient struct {
	chatModel model.ToolCallingChatModel
}

// NewCompletionClient builds a completion client for the named provider.
func NewCompletionClient(providerName string, pc config.ProviderConfig) (*CompletionClient, error) {
	var chatModel model.ToolCallingChatModel
	var err error

	switch providerName {
	case "openai":
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			APIKey:  pc.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: pc.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(context.Background(), &gemini.Config{
			Client: client,
			Model:  pc.Model,
		})
	case "claude":
		var baseURLPtr *string
		if pc.BaseURL != "" {
			baseURLPtr = &pc.BaseURL
		}
		chatModel, err = claude.NewChatModel(context.Background(), &claude.Config{
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", providerName, err)
	}
	return &CompletionClient{chatModel: chatModel}, nil
}

// Complete runs one system+user exchange and returns the model's text.
func (c *CompletionClient) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}
	resp, err := c.chatModel.Generate(ctx, messages, model.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	return resp.Content, nil
}
