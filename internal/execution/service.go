package execution

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"ki2go/internal/ai"
	"ki2go/internal/common"
	"ki2go/internal/infra/queue"
	"ki2go/internal/logger"
	"ki2go/internal/metrics"
	"ki2go/internal/superprompt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Service 任务执行服务
//
// 执行链路：解析生效模板 → 渲染变量 → 调用 AI 补全 → 异步记一次使用。
// 解析结果决定系统指令来自哪一层级（用户/组织/全局/基础模板）。
type Service struct {
	resolver  *superprompt.Resolver
	completer ai.Completer
	queue     queue.Client // 可为 nil（未启用队列）
}

// NewService 创建 Service 实例
func NewService(resolver *superprompt.Resolver, completer ai.Completer, queueClient queue.Client) *Service {
	return &Service{resolver: resolver, completer: completer, queue: queueClient}
}

// RunRequest 执行任务请求
type RunRequest struct {
	BaseTemplateID string            `json:"baseTemplateId" binding:"required"`
	Input          string            `json:"input" binding:"required"`
	Variables      map[string]string `json:"variables"`

	// 调用上下文，决定解析层级
	UserID         string  `json:"-"`
	OrganizationID *string `json:"-"`
}

// RunResult 执行任务结果
type RunResult struct {
	Output           string `json:"output"`
	Model            string `json:"model"`
	ResolutionType   string `json:"resolutionType"`
	SuperpromptID    string `json:"superpromptId,omitempty"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
}

// Run 执行一次任务
func (s *Service) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	res, err := s.resolver.Resolve(ctx, req.BaseTemplateID, req.UserID, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	systemPrompt, err := renderPrompt(res.Superprompt, req.Variables)
	if err != nil {
		return nil, common.NewBusinessError(common.CodeInvalidRequest,
			fmt.Sprintf("模板渲染失败: %v", err))
	}

	completion, err := s.completer.Complete(ctx, systemPrompt, req.Input)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return nil, common.NewBusinessError(common.CodeExecutionFailed, err.Error())
	}
	metrics.ExecutionsTotal.WithLabelValues("ok").Inc()

	result := &RunResult{
		Output:           completion.Content,
		Model:            completion.Model,
		ResolutionType:   res.Type,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	}
	if result.PromptTokens == 0 {
		// 个别兼容端点不回传用量，本地估算提示词侧
		result.PromptTokens = estimateTokens(systemPrompt + req.Input)
	}

	if res.Override != nil {
		result.SuperpromptID = res.Override.ID
		s.recordUsage(res.Override.ID)
	}
	return result, nil
}

// renderPrompt 渲染模板变量，缺失变量按空值处理
func renderPrompt(text string, variables map[string]string) (string, error) {
	if len(variables) == 0 {
		return text, nil
	}

	tmpl, err := template.New("superprompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// estimateTokens 本地估算 token 数；编码器不可用时退化为字符数/4
func estimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// recordUsage 投递使用计数任务，失败仅记日志
func (s *Service) recordUsage(superpromptID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSuperpromptUsage(superpromptID); err != nil {
		logger.Warn("投递使用计数任务失败",
			zap.String("superprompt_id", superpromptID),
			zap.Error(err),
		)
	}
}
