package superprompt

import (
	"context"
	"testing"

	"ki2go/internal/common"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 搭一套三层变体：用户级 U、组织级 O、全局 G，外加基础模板 B
func seedTiers(t *testing.T) (*Service, *Resolver, *gorm.DB, string) {
	t.Helper()
	svc, db := newTestService(t)
	base := seedBaseTemplate(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateRequest{
		BaseTemplateID: base.ID,
		UserID:         strPtr("user-7"),
		Name:           "U1",
		Superprompt:    "Benutzertext",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreateRequest{
		BaseTemplateID: base.ID,
		OrganizationID: strPtr("org-1"),
		Name:           "O1",
		Superprompt:    "Organisationstext",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreateRequest{
		BaseTemplateID: base.ID,
		Name:           "G1",
		Superprompt:    "Globaler Text",
	})
	require.NoError(t, err)

	return svc, NewResolver(db, nil), db, base.ID
}

func resolveType(t *testing.T, r *Resolver, baseID, userID string, orgID *string) *Resolution {
	t.Helper()
	res, err := r.Resolve(context.Background(), baseID, userID, orgID)
	require.NoError(t, err)
	return res
}

func TestResolve_PriorityOrder(t *testing.T) {
	svc, resolver, _, baseID := seedTiers(t)
	ctx := context.Background()

	// 用户级最优先
	res := resolveType(t, resolver, baseID, "user-7", strPtr("org-1"))
	require.Equal(t, ResolutionUser, res.Type)
	require.Equal(t, "Benutzertext", res.Superprompt)
	require.NotNil(t, res.Override)

	// 停用用户级 → 组织级
	require.NoError(t, svc.SetStatus(ctx, res.Override.ID, StatusArchived, "admin-1"))
	res = resolveType(t, resolver, baseID, "user-7", strPtr("org-1"))
	require.Equal(t, ResolutionOrganization, res.Type)
	require.Equal(t, "Organisationstext", res.Superprompt)

	// 停用组织级 → 全局
	require.NoError(t, svc.SetStatus(ctx, res.Override.ID, StatusPaused, "admin-1"))
	res = resolveType(t, resolver, baseID, "user-7", strPtr("org-1"))
	require.Equal(t, ResolutionGlobal, res.Type)
	require.Equal(t, "Globaler Text", res.Superprompt)

	// 停用全局 → 基础模板本身
	require.NoError(t, svc.SetStatus(ctx, res.Override.ID, StatusChangeRequested, "admin-1"))
	res = resolveType(t, resolver, baseID, "user-7", strPtr("org-1"))
	require.Equal(t, ResolutionBase, res.Type)
	require.Equal(t, "Du bist ein Marketing-Assistent.", res.Superprompt)
	require.Nil(t, res.Override)
}

func TestResolve_NoUserContext(t *testing.T) {
	_, resolver, _, baseID := seedTiers(t)

	// 无用户上下文时用户级不参与
	res := resolveType(t, resolver, baseID, "", strPtr("org-1"))
	require.Equal(t, ResolutionOrganization, res.Type)

	// 无任何上下文 → 全局
	res = resolveType(t, resolver, baseID, "", nil)
	require.Equal(t, ResolutionGlobal, res.Type)
}

func TestResolve_OtherUserFallsThrough(t *testing.T) {
	_, resolver, _, baseID := seedTiers(t)

	// 别的用户不命中 user-7 的变体
	res := resolveType(t, resolver, baseID, "user-99", nil)
	require.Equal(t, ResolutionGlobal, res.Type)
}

func TestResolve_UnknownBaseTemplate(t *testing.T) {
	_, resolver, _, _ := seedTiers(t)

	_, err := resolver.Resolve(context.Background(), "missing-base", "user-7", nil)
	requireBusinessCode(t, err, common.CodeTemplateNotFound)
}

func TestResolve_LegacyIsActiveFlag(t *testing.T) {
	svc, db := newTestService(t)
	base := seedBaseTemplate(t, db)
	resolver := NewResolver(db, nil)
	ctx := context.Background()

	sp, err := svc.Create(ctx, &CreateRequest{
		BaseTemplateID: base.ID,
		Name:           "legacy",
		Superprompt:    "Legacy-Text",
	})
	require.NoError(t, err)

	// 仅有遗留布尔标志的历史数据（status 为空）
	require.NoError(t, db.Model(&CustomSuperprompt{}).
		Where("id = ?", sp.ID).
		Updates(map[string]any{"status": "", "is_active": true}).Error)

	res := resolveType(t, resolver, base.ID, "", nil)
	require.Equal(t, ResolutionGlobal, res.Type)
	require.Equal(t, "Legacy-Text", res.Superprompt)

	require.NoError(t, db.Model(&CustomSuperprompt{}).
		Where("id = ?", sp.ID).
		Update("is_active", false).Error)

	res = resolveType(t, resolver, base.ID, "", nil)
	require.Equal(t, ResolutionBase, res.Type)
}
