package ai

import (
	"context"
	"fmt"

	"ki2go/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// Completer AI 补全能力抽象，便于测试替换
type Completer interface {
	// Complete 以 systemPrompt 为系统指令、input 为用户输入执行一次补全
	Complete(ctx context.Context, systemPrompt, input string) (*CompletionResult, error)
}

// CompletionResult 补全结果
type CompletionResult struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
}

// openaiCompleter 基于 OpenAI Chat Completions 的实现
type openaiCompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewCompleter 创建 OpenAI Completer
func NewCompleter(cfg config.OpenAIConfig) Completer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &openaiCompleter{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete 执行一次补全调用
func (c *openaiCompleter) Complete(ctx context.Context, systemPrompt, input string) (*CompletionResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("调用 AI 补全失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("AI 补全返回空结果")
	}

	return &CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
