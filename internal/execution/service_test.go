package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ki2go/internal/ai"
	"ki2go/internal/audit"
	"ki2go/internal/common"
	"ki2go/internal/logger"
	"ki2go/internal/superprompt"
	"ki2go/internal/template"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeCompleter 回显收到的系统指令，便于断言渲染结果
type fakeCompleter struct {
	lastSystemPrompt string
	lastInput        string
	fail             bool
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, input string) (*ai.CompletionResult, error) {
	if f.fail {
		return nil, fmt.Errorf("Anbieter nicht erreichbar")
	}
	f.lastSystemPrompt = systemPrompt
	f.lastInput = input
	return &ai.CompletionResult{Content: "Antwort", Model: "fake-model"}, nil
}

func setupExecution(t *testing.T, completer ai.Completer) (*Service, string) {
	t.Helper()
	require.NoError(t, logger.Init("error", "console", "stdout"))

	dsn := fmt.Sprintf("file:execution_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&template.BaseTemplate{},
		&superprompt.CustomSuperprompt{},
		&superprompt.HistoryEntry{},
		&audit.AuditLog{},
	))

	auditLogger := audit.NewLogger(db)
	base, err := template.NewService(db, auditLogger).Create(context.Background(), &template.CreateRequest{
		Name:        "Basistext",
		Superprompt: "Hallo {{.name}}, du bist ein Assistent.",
		Actor:       "admin-1",
	})
	require.NoError(t, err)

	resolver := superprompt.NewResolver(db, nil)
	return NewService(resolver, completer, nil), base.ID
}

func TestRun_RendersVariables(t *testing.T) {
	completer := &fakeCompleter{}
	svc, baseID := setupExecution(t, completer)

	result, err := svc.Run(context.Background(), &RunRequest{
		BaseTemplateID: baseID,
		Input:          "Schreib einen Slogan",
		Variables:      map[string]string{"name": "KI2GO"},
		UserID:         "user-7",
	})
	require.NoError(t, err)
	require.Equal(t, "Antwort", result.Output)
	require.Equal(t, "fake-model", result.Model)
	require.Equal(t, superprompt.ResolutionBase, result.ResolutionType)
	require.Empty(t, result.SuperpromptID)
	require.Equal(t, "Hallo KI2GO, du bist ein Assistent.", completer.lastSystemPrompt)
	require.Equal(t, "Schreib einen Slogan", completer.lastInput)
	// 提供方未回传用量时本地估算
	require.Greater(t, result.PromptTokens, 0)
}

func TestRun_UnknownTemplate(t *testing.T) {
	svc, _ := setupExecution(t, &fakeCompleter{})

	_, err := svc.Run(context.Background(), &RunRequest{
		BaseTemplateID: "missing",
		Input:          "x",
	})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeTemplateNotFound, be.Code)
}

func TestRun_CompleterFailure(t *testing.T) {
	svc, baseID := setupExecution(t, &fakeCompleter{fail: true})

	_, err := svc.Run(context.Background(), &RunRequest{
		BaseTemplateID: baseID,
		Input:          "x",
	})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeExecutionFailed, be.Code)
}

func TestRenderPrompt(t *testing.T) {
	out, err := renderPrompt("Keine Variablen", nil)
	require.NoError(t, err)
	require.Equal(t, "Keine Variablen", out)

	out, err = renderPrompt("Hallo {{.wer}}", map[string]string{"wer": "Welt"})
	require.NoError(t, err)
	require.Equal(t, "Hallo Welt", out)

	_, err = renderPrompt("kaputt {{.", map[string]string{"x": "y"})
	require.Error(t, err)
}
