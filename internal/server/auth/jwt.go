package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// PurposeEmailVerification is the purpose claim of email verification tokens.
const PurposeEmailVerification = "email-verification"

// Claims содержит стандартные утверждения (Subject = id пользователя), адрес и
// назначение токена.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

func GenerateVerificationToken(userID, email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Email:   email,
		Purpose: PurposeEmailVerification,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseVerificationToken returns the user id and email the token was issued
// for. Expired tokens yield common.ErrTokenExpired, every other defect
// common.ErrInvalidToken.
func ParseVerificationToken(tokenString string, secretKey []byte) (userID, email string, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", common.ErrTokenExpired
		}
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != PurposeEmailVerification || claims.Email == "" || claims.Subject == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.Subject, claims.Email, nil
}
