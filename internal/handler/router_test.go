package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptowallet/internal/handler"
	"cryptowallet/internal/model"
	"cryptowallet/internal/service"
	"cryptowallet/internal/testutil"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func (c *apiClient) do(method, path string, body interface{}) envelope {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	// 业务错误也返回 200，靠 code 区分
	require.Equal(c.t, http.StatusOK, w.Code)
	var out envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (c *apiClient) as(token string) *apiClient {
	return &apiClient{t: c.t, router: c.router, token: token}
}

func newAPI(t *testing.T) (*apiClient, *gorm.DB) {
	db := testutil.NewDB(t)
	router := handler.NewRouter(db, testutil.NewLocker(t), testutil.Config())
	return &apiClient{t: t, router: router}, db
}

func login(t *testing.T, api *apiClient, email, password string) string {
	t.Helper()

	resp := api.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": password})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestRegisterLoginAndAuth(t *testing.T) {
	api, _ := newAPI(t)

	resp := api.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "carol@example.com", "password": "secret-pass", "name": "Carol",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = api.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email": "CAROL@example.com", "password": "secret-pass", "name": "Carol",
	})
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = api.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "carol@example.com", "password": "wrong-pass"})
	assert.Equal(t, response.CodeUnauthorized, resp.Code)

	token := login(t, api, "carol@example.com", "secret-pass")

	assert.Equal(t, response.CodeUnauthorized, api.do(http.MethodGet, "/api/v1/account", nil).Code)
	assert.Equal(t, response.CodeUnauthorized, api.as("garbage").do(http.MethodGet, "/api/v1/account", nil).Code)

	resp = api.as(token).do(http.MethodGet, "/api/v1/account", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	var view struct {
		Email    string            `json:"email"`
		Balances map[string]string `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "carol@example.com", view.Email)
	assert.Equal(t, "0", view.Balances[model.TokenUSDT])

	// 普通用户访问管理接口
	assert.Equal(t, response.CodeForbidden, api.as(token).do(http.MethodGet, "/api/v1/admin/accounts", nil).Code)
}

func TestWalletFlow(t *testing.T) {
	api, db := newAPI(t)
	admin := testutil.CreateAdmin(t, db)
	user := testutil.CreateAccount(t, db, testutil.Seed{})
	other := testutil.CreateAccount(t, db, testutil.Seed{})

	adminAPI := api.as(login(t, api, admin.Email, testutil.Password))
	userAPI := api.as(login(t, api, user.Email, testutil.Password))

	resp := adminAPI.do(http.MethodPost, "/api/v1/admin/credit", gin.H{
		"account_id": user.ID, "token": "usdt", "amount": "100", "kind": "deposit",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = userAPI.do(http.MethodPost, "/api/v1/wallet/swap", gin.H{
		"from_token": "USDT", "to_token": "usdc", "amount": 40,
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	var swap struct {
		Hash     string `json:"hash"`
		Received string `json:"received"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &swap))
	assert.Equal(t, "40", swap.Received)

	cases := []struct {
		name string
		path string
		body gin.H
		code int
	}{
		{"insufficient", "/api/v1/wallet/swap", gin.H{"from_token": "usdt", "to_token": "usdc", "amount": "1000"}, response.CodeInsufficientBalance},
		{"invalid token", "/api/v1/wallet/swap", gin.H{"from_token": "usdt", "to_token": "usdt", "amount": "1"}, response.CodeInvalidToken},
		{"zero amount", "/api/v1/wallet/swap", gin.H{"from_token": "usdt", "to_token": "usdc"}, response.CodeInvalidAmount},
		{"self transfer", "/api/v1/wallet/transfer", gin.H{"recipient": user.Email, "token": "usdt", "amount": "1"}, response.CodeSelfTransfer},
		{"unknown recipient", "/api/v1/wallet/transfer", gin.H{"recipient": "ghost@example.com", "token": "usdt", "amount": "1"}, response.CodeRecipientNotFound},
		{"below minimum", "/api/v1/wallet/withdraw", gin.H{"token": "usdt", "amount": "5", "to_address": "T123"}, response.CodeBelowMinimum},
		{"missing address", "/api/v1/wallet/withdraw", gin.H{"token": "usdt", "amount": "50"}, response.CodeParamError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.code, userAPI.do(http.MethodPost, c.path, c.body).Code)
		})
	}

	resp = userAPI.do(http.MethodPost, "/api/v1/wallet/transfer", gin.H{
		"recipient": fmt.Sprint(other.ID), "token": "usdt", "amount": "10",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	var transfer struct {
		Hash string `json:"hash"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &transfer))

	// 浏览器接口无需登录
	resp = api.do(http.MethodGet, "/api/v1/explorer/"+transfer.Hash, nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, response.CodeNotFound, api.do(http.MethodGet, "/api/v1/explorer/0xmissing", nil).Code)

	resp = userAPI.do(http.MethodPost, "/api/v1/wallet/withdraw", gin.H{
		"token": "usdt", "amount": "20", "to_address": "TXk1p9w4Qh2sN8vLrF3mZb7cYd6eGa5tUj",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	var withdrawal struct {
		RequestID int64  `json:"request_id"`
		Fee       string `json:"fee"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &withdrawal))
	assert.Equal(t, "0.4", withdrawal.Fee)

	resolvePath := fmt.Sprintf("/api/v1/admin/withdrawals/%d/resolve", withdrawal.RequestID)
	assert.Equal(t, response.CodeParamError, adminAPI.do(http.MethodPost, resolvePath, gin.H{"action": "cancel"}).Code)
	assert.Equal(t, response.CodeSuccess, adminAPI.do(http.MethodPost, resolvePath, gin.H{"action": "reject"}).Code)
	assert.Equal(t, response.CodeAlreadyProcessed, adminAPI.do(http.MethodPost, resolvePath, gin.H{"action": "approve"}).Code)

	resp = userAPI.do(http.MethodGet, "/api/v1/wallet/transactions?limit=10", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 4) // credit, swap, transfer, withdrawal

	// 用户被限制后不能再交易，但还能登录
	resp = adminAPI.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/accounts/%d/status", user.ID), gin.H{"status": "restricted"})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	assert.Equal(t, response.CodeRestricted, userAPI.do(http.MethodPost, "/api/v1/wallet/swap", gin.H{
		"from_token": "usdt", "to_token": "usdc", "amount": "1",
	}).Code)
	login(t, api, user.Email, testutil.Password)
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrSelfTransfer, response.CodeSelfTransfer},
		{service.ErrRecipientNotFound, response.CodeRecipientNotFound},
		{fmt.Errorf("%w: x", service.ErrNotFound), response.CodeNotFound},
		{fmt.Errorf("%w: x", service.ErrRestricted), response.CodeRestricted},
		{service.ErrForbidden, response.CodeForbidden},
		{service.ErrEmailTaken, response.CodeParamError},
		{service.ErrConflict, response.CodeConflict},
		{service.ErrInternal, response.CodeServerError},
		{fmt.Errorf("boom"), response.CodeServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, handler.ErrorCode(c.err), c.err.Error())
	}
}

func TestHealth(t *testing.T) {
	api, _ := newAPI(t)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
