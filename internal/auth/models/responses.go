package models

// This file contains transport-layer response models for JSON output.

// TokenResult is the response payload of login and refresh. The session
// token travels only in the cookie.
type TokenResult struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`         // seconds until the access token expires
	SessionExpiresIn int    `json:"session_expires_in"` // seconds until the session cookie expires
}

// MeResult is the response payload of GET /me.
type MeResult struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
