package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims はアクセストークンのクレーム。Subject にアカウントのUUIDが入る。
type MyClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}
