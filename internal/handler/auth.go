package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/model"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxAccountID = "account_id"
	ctxRole      = "role"
)

var ErrInvalidSession = errors.New("登录已失效")

// TokenManager 签发和校验 HS256 访问令牌，sub 为账户 ID
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(cfg *config.JWTConfig) *TokenManager {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(cfg.Secret), ttl: ttl}
}

func (m *TokenManager) Issue(account *model.Account) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(account.ID, 10),
		"role": account.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	})
	return token.SignedString(m.secret)
}

// Parse 返回账户 ID 和角色声明，角色仅用于路由层快速拦截
func (m *TokenManager) Parse(raw string) (int64, string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidSession
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, "", ErrInvalidSession
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrInvalidSession
	}
	role, _ := claims["role"].(string)
	return id, role, nil
}

// AuthMiddleware 解析 Authorization: Bearer <token>
func AuthMiddleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			response.Abort(c, response.CodeUnauthorized, "未登录")
			return
		}

		id, role, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			response.Abort(c, response.CodeUnauthorized, err.Error())
			return
		}

		c.Set(ctxAccountID, id)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// AdminOnly 必须挂在 AuthMiddleware 之后；服务层会再按数据库校验一次
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != model.RoleAdmin {
			response.Abort(c, response.CodeForbidden, "需要管理员权限")
			return
		}
		c.Next()
	}
}

func currentAccountID(c *gin.Context) int64 {
	return c.GetInt64(ctxAccountID)
}
