package template

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ki2go/internal/audit"
	"ki2go/internal/common"
	"ki2go/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	require.NoError(t, logger.Init("error", "console", "stdout"))

	dsn := fmt.Sprintf("file:template_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&BaseTemplate{}, &audit.AuditLog{}))
	return NewService(db, audit.NewLogger(db)), db
}

func strPtr(s string) *string { return &s }

func TestCreate_GeneratesUniqueID(t *testing.T) {
	svc, _ := setupTestService(t)

	tmpl, err := svc.Create(context.Background(), &CreateRequest{
		Name:        "Marketing",
		Superprompt: "Inhalt",
		Actor:       "admin-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tmpl.ID)
	require.Contains(t, tmpl.UniqueID, "KI2GO-")
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Create(context.Background(), &CreateRequest{Superprompt: "x"})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidRequest, be.Code)

	_, err = svc.Create(context.Background(), &CreateRequest{Name: "x"})
	be, ok = common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidRequest, be.Code)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeTemplateNotFound, be.Code)
}

func TestUpdate_SparsePatch(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tmpl, err := svc.Create(ctx, &CreateRequest{
		Name:        "Alt",
		Description: "Beschreibung",
		Superprompt: "Inhalt",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tmpl.ID, &UpdateRequest{Name: strPtr("Neu")})
	require.NoError(t, err)
	require.Equal(t, "Neu", updated.Name)
	require.Equal(t, "Beschreibung", updated.Description)
	require.Equal(t, "Inhalt", updated.Superprompt)

	_, err = svc.Update(ctx, tmpl.ID, &UpdateRequest{Superprompt: strPtr("")})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidRequest, be.Code)
}

func TestList_KeywordFilter(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Marketing DE", "Marketing EN", "Support"} {
		_, err := svc.Create(ctx, &CreateRequest{Name: name, Superprompt: "x"})
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, &ListRequest{Keyword: "Marketing"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)
}

func TestPromoteSuperprompt(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	tmpl, err := svc.Create(ctx, &CreateRequest{
		Name:        "Geteilt",
		Superprompt: "Alter Basisinhalt",
		Actor:       "admin-1",
	})
	require.NoError(t, err)

	err = svc.PromoteSuperprompt(ctx, nil, &PromoteRequest{
		TemplateID:       tmpl.ID,
		Superprompt:      "Neuer Basisinhalt",
		SourceOverrideID: "sp-1",
		SourceRequestID:  "cr-1",
		Actor:            "admin-1",
	})
	require.NoError(t, err)

	promoted, err := svc.Get(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, "Neuer Basisinhalt", promoted.Superprompt)

	// 空内容被拒绝
	err = svc.PromoteSuperprompt(ctx, nil, &PromoteRequest{TemplateID: tmpl.ID})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidRequest, be.Code)

	// 回写在事务内生效
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.PromoteSuperprompt(ctx, tx, &PromoteRequest{
			TemplateID:  tmpl.ID,
			Superprompt: "Transaktionaler Inhalt",
			Actor:       "admin-1",
		})
	})
	require.NoError(t, err)

	promoted, err = svc.Get(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, "Transaktionaler Inhalt", promoted.Superprompt)

	// 审计事件写入
	logs, err := audit.NewLogger(db).ListByResource(ctx, "base_template", tmpl.ID, 20)
	require.NoError(t, err)
	var promotes int
	for _, l := range logs {
		if l.Action == string(audit.EventTemplatePromote) {
			promotes++
		}
	}
	require.Equal(t, 2, promotes)
}
