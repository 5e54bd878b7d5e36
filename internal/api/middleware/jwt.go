package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"supportportal.io/portal/internal/config"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
)

// TokenType separates short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is presented as an
// access token or the other way round.
var ErrWrongTokenType = errors.New("wrong token type")

// JWTClaims defines custom JWT claims for the portal.
type JWTClaims struct {
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	Type        TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are accepted in addition to SigningKey while a key
	// rotation is in progress.
	VerificationKeys [][]byte
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
}

// JWTConfigFromSecurity maps the security section of the configuration.
func JWTConfigFromSecurity(sec config.SecurityConfig) JWTConfig {
	return JWTConfig{
		SigningKey: []byte(sec.SessionSecret),
		Issuer:     sec.Issuer,
		AccessTTL:  sec.AccessTokenTTL,
		RefreshTTL: sec.RefreshTokenTTL,
	}
}

// TokenPair is returned by the login and refresh endpoints.
type TokenPair struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (cfg JWTConfig) ttl(typ TokenType) time.Duration {
	if typ == TokenRefresh {
		if cfg.RefreshTTL != 0 {
			return cfg.RefreshTTL
		}
		return 7 * 24 * time.Hour
	}
	if cfg.AccessTTL != 0 {
		return cfg.AccessTTL
	}
	return time.Hour
}

// GenerateToken creates a signed JWT of the given type for the user.
func GenerateToken(cfg JWTConfig, typ TokenType, user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ttl(typ))
	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token id: %w", err)
	}

	claims := JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if typ == TokenAccess {
		claims.Name = user.FullName()
		claims.Permissions = user.Permissions()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// GenerateTokenPair issues an access and a refresh token.
func GenerateTokenPair(cfg JWTConfig, user *domain.User) (*TokenPair, error) {
	access, expiresAt, err := GenerateToken(cfg, TokenAccess, user)
	if err != nil {
		return nil, err
	}
	refresh, _, err := GenerateToken(cfg, TokenRefresh, user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses tokenString and checks its signature, issuer and type.
func (cfg JWTConfig) ValidateToken(tokenString string, want TokenType) (*JWTClaims, error) {
	keys := make([][]byte, 0, 1+len(cfg.VerificationKeys))
	keys = append(keys, cfg.SigningKey)
	keys = append(keys, cfg.VerificationKeys...)

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, opts...)
		if err != nil {
			lastErr = err
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				continue
			}
			return nil, err
		}
		if !token.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
		if claims.Type != want {
			return nil, ErrWrongTokenType
		}
		if claims.UserID <= 0 {
			return nil, jwt.ErrTokenInvalidClaims
		}
		return claims, nil
	}
	if lastErr == nil {
		lastErr = jwt.ErrTokenUnverifiable
	}
	return nil, lastErr
}

// JWTAuth returns a Gin middleware that validates Bearer access tokens and
// populates the request context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := cfg.ValidateToken(strings.TrimSpace(parts[1]), TokenAccess)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    apperrors.CodeTokenInvalid,
				"message": msg,
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("permissions", claims.Permissions)
		c.Request = c.Request.WithContext(
			SetUserContext(c.Request.Context(), claims.UserID, claims.Email, claims.Permissions),
		)

		c.Next()
	}
}
