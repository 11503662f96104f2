package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access-token payload issued by the external
// identity service. ParticipantID is the platform-wide user id used
// in presence tables and event records.
type JWTClaims struct {
	ParticipantID int64  `json:"participant_id"`
	Role          Role   `json:"role"`
	Username      string `json:"username"`
	jwt.RegisteredClaims
}
