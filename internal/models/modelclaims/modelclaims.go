// Package modelclaims provides types for token authorization.

package modelclaims

import "github.com/golang-jwt/jwt"

type AccountClaims struct {
	AccountID string `json:"accountID"`
	jwt.StandardClaims
}
