package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// User is the internal account publishing on the platforms.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserName  string    `json:"user_name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReqLogin is the login request body.
type ReqLogin struct {
	UserName string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserClaims are the JWT claims carried by API bearer tokens.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
