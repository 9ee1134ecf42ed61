package organization

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ki2go/internal/auth"
	"ki2go/internal/common"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:organization_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Organization{}, &User{}))
	return NewService(db)
}

func TestCreateUser_DefaultsAndValidation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, &CreateOrganizationRequest{Name: "Acme GmbH"})
	require.NoError(t, err)

	user, err := svc.CreateUser(ctx, &CreateUserRequest{
		OrganizationID: &org.ID,
		Email:          "kunde@acme.de",
		Password:       "geheim123",
	})
	require.NoError(t, err)
	require.Equal(t, auth.RoleCustomer, user.Role)
	require.NotEqual(t, "geheim123", user.PasswordHash)

	_, err = svc.CreateUser(ctx, &CreateUserRequest{
		Email:    "x@y.de",
		Password: "geheim123",
		Role:     "superuser",
	})
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidRequest, be.Code)

	// 引用不存在的组织被拒
	missing := "missing-org"
	_, err = svc.CreateUser(ctx, &CreateUserRequest{
		OrganizationID: &missing,
		Email:          "z@y.de",
		Password:       "geheim123",
	})
	be, ok = common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeOrganizationNotFound, be.Code)
}

func TestAuthenticate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, &CreateUserRequest{
		Email:    "admin@ki2go.de",
		Password: "streng-geheim",
		Role:     auth.RoleAdmin,
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "admin@ki2go.de", "streng-geheim")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "admin@ki2go.de", "falsch")
	be, ok := common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidCredentials, be.Code)

	// 不存在的账号与密码错误不可区分
	_, err = svc.Authenticate(ctx, "niemand@ki2go.de", "egal")
	be, ok = common.AsBusinessError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidCredentials, be.Code)
}
