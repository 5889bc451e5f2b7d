package mmodel

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair is the access/refresh pair returned by login and refresh
// (spec.md §3, §4.9).
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRecord is the persisted, hashed form of an issued refresh
// token. Storing the SHA-256 hash rather than the raw value means a
// database leak doesn't hand out usable tokens.
type RefreshTokenRecord struct {
	JTI        uuid.UUID  `json:"jti"`
	UserID     uuid.UUID  `json:"userId"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	ReplacedBy *uuid.UUID `json:"replacedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
