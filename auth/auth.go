package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gymserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// CookieName はアクセストークンを入れるクッキー名
const CookieName = "access-token"

var ErrNoToken = errors.New("token is required")

// GenerateToken はアカウントのUUIDとロールを載せたJWTを発行する
func GenerateToken(secret []byte, accountID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.MyClaims{
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Subject:   accountID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken は署名と有効期限を検証してクレームを返す
func ParseToken(secret []byte, tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// TokenFromRequest はクッキー、なければ Authorization ヘッダーからトークンを取り出す。
// ブラウザのWebSocketはヘッダーを付けられないのでクッキーを優先する。
func TokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenString == "" {
		return "", ErrNoToken
	}
	return tokenString, nil
}
