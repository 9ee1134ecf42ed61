package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"ki2go/internal/changerequest"
	"ki2go/internal/superprompt"
	"ki2go/internal/worker/tasks"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&superprompt.CustomSuperprompt{},
		&changerequest.ChangeRequest{},
	))
	return db
}

func seedSuperprompt(t *testing.T, db *gorm.DB) *superprompt.CustomSuperprompt {
	t.Helper()
	sp := &superprompt.CustomSuperprompt{
		ID:             uuid.New().String(),
		BaseTemplateID: uuid.New().String(),
		TargetType:     superprompt.TargetGlobal,
		Name:           "Globale Variante",
		Superprompt:    "Globaler Text",
		Status:         superprompt.StatusActive,
		IsActive:       true,
		Version:        1,
		UniqueID:       "KI2GO-T1-GLOBAL-v1",
	}
	require.NoError(t, db.Create(sp).Error)
	return sp
}

func usageTask(t *testing.T, superpromptID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(tasks.SuperpromptUsagePayload{SuperpromptID: superpromptID})
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeSuperpromptUsage, payload)
}

func TestUsageHandlerHandleSuperpromptUsage_Increments(t *testing.T) {
	db := setupHandlerDB(t)
	sp := seedSuperprompt(t, db)
	h := NewUsageHandler(db, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, h.HandleSuperpromptUsage(ctx, usageTask(t, sp.ID)))
	require.NoError(t, h.HandleSuperpromptUsage(ctx, usageTask(t, sp.ID)))

	var updated superprompt.CustomSuperprompt
	require.NoError(t, db.First(&updated, "id = ?", sp.ID).Error)
	require.EqualValues(t, 2, updated.UsageCount)
	require.NotNil(t, updated.LastUsedAt)
}

func TestUsageHandlerHandleSuperpromptUsage_UnknownID(t *testing.T) {
	db := setupHandlerDB(t)
	sp := seedSuperprompt(t, db)
	h := NewUsageHandler(db, zaptest.NewLogger(t))

	// 目标已被级联删除时计数丢弃，不触发任务重试
	require.NoError(t, h.HandleSuperpromptUsage(context.Background(), usageTask(t, "missing-id")))

	var untouched superprompt.CustomSuperprompt
	require.NoError(t, db.First(&untouched, "id = ?", sp.ID).Error)
	require.EqualValues(t, 0, untouched.UsageCount)
	require.Nil(t, untouched.LastUsedAt)
}

func TestUsageHandlerHandleSuperpromptUsage_InvalidPayload(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewUsageHandler(db, zaptest.NewLogger(t))

	task := asynq.NewTask(tasks.TypeSuperpromptUsage, []byte("not-json"))
	require.Error(t, h.HandleSuperpromptUsage(context.Background(), task))
}

func seedChangeRequest(t *testing.T, db *gorm.DB) *changerequest.ChangeRequest {
	t.Helper()
	cr := &changerequest.ChangeRequest{
		ID:            uuid.New().String(),
		SuperpromptID: uuid.New().String(),
		RequestedBy:   "user-1",
		Title:         "Ton anpassen",
		Description:   "Der Text klingt insgesamt zu förmlich.",
		Priority:      changerequest.PriorityNormal,
		Status:        changerequest.StatusOpen,
	}
	require.NoError(t, db.Create(cr).Error)
	return cr
}

func notifyTask(t *testing.T, requestID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(tasks.ChangeRequestNotifyPayload{RequestID: requestID})
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeChangeRequestNotify, payload)
}

func TestChangeRequestHandlerHandleNotify_MarksNotified(t *testing.T) {
	db := setupHandlerDB(t)
	cr := seedChangeRequest(t, db)
	h := NewChangeRequestHandler(db, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, h.HandleChangeRequestNotify(ctx, notifyTask(t, cr.ID)))

	var updated changerequest.ChangeRequest
	require.NoError(t, db.First(&updated, "id = ?", cr.ID).Error)
	require.NotNil(t, updated.NotifiedAt)
	require.Equal(t, 1, updated.NotificationAttempts)

	// 重复投递累加尝试次数
	require.NoError(t, h.HandleChangeRequestNotify(ctx, notifyTask(t, cr.ID)))
	require.NoError(t, db.First(&updated, "id = ?", cr.ID).Error)
	require.Equal(t, 2, updated.NotificationAttempts)
}

func TestChangeRequestHandlerHandleNotify_MissingRequest(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewChangeRequestHandler(db, zaptest.NewLogger(t))

	// 行不存在视为失败，交给 asynq 重试
	require.Error(t, h.HandleChangeRequestNotify(context.Background(), notifyTask(t, "missing-id")))
}

func TestChangeRequestHandlerHandleNotify_InvalidPayload(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewChangeRequestHandler(db, zaptest.NewLogger(t))

	task := asynq.NewTask(tasks.TypeChangeRequestNotify, []byte("not-json"))
	require.Error(t, h.HandleChangeRequestNotify(context.Background(), task))
}
