package superprompts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ki2go/internal/audit"
	"ki2go/internal/auth"
	"ki2go/internal/common"
	"ki2go/internal/logger"
	"ki2go/internal/superprompt"
	"ki2go/internal/template"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHandlerTest(t *testing.T) (*SuperpromptHandler, *gorm.DB, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, logger.Init("error", "console", "stdout"))

	dsn := fmt.Sprintf("file:superprompt_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		Superprompt: "Basisinhalt",
		Actor:       "admin-1",
	})
	require.NoError(t, err)

	service := superprompt.NewService(db, nil, auditLogger)
	return NewSuperpromptHandler(service, superprompt.NewResolver(db, nil)), db, base.ID
}

func doRequest(t *testing.T, handle gin.HandlerFunc, method, target string, body any, params gin.Params, caller *auth.UserContext) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	if caller != nil {
		c.Set(string(auth.UserContextKey), caller)
	}

	handle(c)
	return resp
}

func adminCtx() *auth.UserContext {
	return &auth.UserContext{UserID: "admin-1", Role: auth.RoleAdmin}
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) common.APIResponse {
	t.Helper()
	var envelope common.APIResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope
}

func TestCreateSuperprompt_HTTP(t *testing.T) {
	handler, _, baseID := setupHandlerTest(t)

	resp := doRequest(t, handler.CreateSuperprompt, http.MethodPost, "/api/superprompts", gin.H{
		"baseTemplateId": baseID,
		"name":           "Globale Variante",
		"superprompt":    "Globaler Text",
	}, nil, adminCtx())

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	envelope := decodeEnvelope(t, resp)
	require.True(t, envelope.Success)

	// 缺失必填字段 → 400
	resp = doRequest(t, handler.CreateSuperprompt, http.MethodPost, "/api/superprompts", gin.H{
		"name": "ohne Basis",
	}, nil, adminCtx())
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// 未知基础模板 → 404
	resp = doRequest(t, handler.CreateSuperprompt, http.MethodPost, "/api/superprompts", gin.H{
		"baseTemplateId": "missing",
		"name":           "x",
		"superprompt":    "y",
	}, nil, adminCtx())
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateSuperprompt_VersionConflictHTTP(t *testing.T) {
	handler, db, baseID := setupHandlerTest(t)

	service := superprompt.NewService(db, nil, audit.NewLogger(db))
	sp, err := service.Create(context.Background(), &superprompt.CreateRequest{
		BaseTemplateID: baseID,
		Name:           "variant",
		Superprompt:    "v1",
		Actor:          "admin-1",
	})
	require.NoError(t, err)

	params := gin.Params{{Key: "id", Value: sp.ID}}

	resp := doRequest(t, handler.UpdateSuperprompt, http.MethodPatch, "/api/superprompts/"+sp.ID, gin.H{
		"superprompt": "v2",
	}, params, adminCtx())
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// 过期的 expectedVersion → 409
	resp = doRequest(t, handler.UpdateSuperprompt, http.MethodPatch, "/api/superprompts/"+sp.ID, gin.H{
		"superprompt":     "konkurrierend",
		"expectedVersion": 1,
	}, params, adminCtx())
	require.Equal(t, http.StatusConflict, resp.Code)

	envelope := decodeEnvelope(t, resp)
	require.False(t, envelope.Success)
	require.Equal(t, common.CodeVersionConflict, envelope.Code)
}

func TestResolve_HTTP(t *testing.T) {
	handler, db, baseID := setupHandlerTest(t)

	service := superprompt.NewService(db, nil, audit.NewLogger(db))
	_, err := service.Create(context.Background(), &superprompt.CreateRequest{
		BaseTemplateID: baseID,
		UserID:         strPtr("user-7"),
		Name:           "U1",
		Superprompt:    "Benutzertext",
		Actor:          "admin-1",
	})
	require.NoError(t, err)

	// 调用方身份作为默认解析上下文
	caller := &auth.UserContext{UserID: "user-7", Role: auth.RoleCustomer}
	resp := doRequest(t, handler.Resolve, http.MethodPost, "/api/superprompts/resolve", gin.H{
		"baseTemplateId": baseID,
	}, nil, caller)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	envelope := decodeEnvelope(t, resp)
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var res superprompt.Resolution
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Equal(t, superprompt.ResolutionUser, res.Type)
	require.Equal(t, "Benutzertext", res.Superprompt)

	// 其他用户回退到基础模板
	other := &auth.UserContext{UserID: "user-99", Role: auth.RoleCustomer}
	resp = doRequest(t, handler.Resolve, http.MethodPost, "/api/superprompts/resolve", gin.H{
		"baseTemplateId": baseID,
	}, nil, other)
	require.Equal(t, http.StatusOK, resp.Code)

	envelope = decodeEnvelope(t, resp)
	raw, err = json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Equal(t, superprompt.ResolutionBase, res.Type)
}

func strPtr(s string) *string { return &s }
