package domain

import "time"

// TokenPair is the access/refresh pair handed to a client on sign-in and refresh.
type TokenPair struct {
	UserID          string    `json:"-"`
	AccessToken     string    `json:"access"`
	RefreshToken    string    `json:"refresh"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}
