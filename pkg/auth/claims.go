package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken indicates the token could not be parsed at all
	ErrMalformedToken = errors.New("malformed access token")
	// ErrExpiredToken indicates the token's exp claim is in the past
	ErrExpiredToken = errors.New("access token expired")
)

// TokenInfo is the subset of JWT claims the console cares about. The console
// never verifies signatures: the upstream API owns the signing secret and
// rejects bad tokens itself. Inspection only screens out tokens that are
// obviously dead so the UI can redirect to login without a round trip.
type TokenInfo struct {
	Subject   string
	Email     string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// InspectToken parses a bearer token without verifying its signature and
// returns its identity claims. Malformed and expired tokens are reported as
// ErrMalformedToken and ErrExpiredToken respectively.
func InspectToken(token string) (*TokenInfo, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrMalformedToken
	}

	info := &TokenInfo{
		Subject:  stringClaim(claims, "sub"),
		Email:    stringClaim(claims, "email"),
		Username: stringClaim(claims, "username"),
		Role:     stringClaim(claims, "role"),
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
		if exp.Time.Before(time.Now()) {
			return info, ErrExpiredToken
		}
	}

	return info, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
