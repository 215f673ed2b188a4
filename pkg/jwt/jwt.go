package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"osm-eval/backend/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// 角色
const (
	RoleAdmin     = "admin"
	RoleEvaluator = "evaluator"
)

// Claims 自定义 JWT 声明
// UserID 即评阅员 ID（evaluator）或管理员 ID（admin），引擎按原样信任
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`       // admin | evaluator
	TokenType string `json:"token_type"` // 仅接受 "access"
	jwtv5.RegisteredClaims
}

// Manager JWT 管理器
// 生产环境 Token 由外部会话服务签发；GenerateAccessToken 供联调工具与测试使用
type Manager struct {
	secret         []byte
	issuer         string
	accessTokenTTL time.Duration
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:         []byte(cfg.JWTSecret),
		issuer:         cfg.Issuer,
		accessTokenTTL: cfg.AccessTokenTTL,
	}
}

// GenerateAccessToken 生成 Access Token
func (m *Manager) GenerateAccessToken(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token（签名、有效期、签发方）
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.issuer))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
