package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/config"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

// AuthService validates access tokens issued by the platform's
// identity service. Credential issuance lives there; this service
// only verifies.
type AuthService struct {
	cfg    config.JWTConfig
	logger *zap.Logger
}

// NewAuthService constructs the validator.
func NewAuthService(cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{cfg: cfg, logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if len(s.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience[0]))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.ParticipantID == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no participant id")
	}
	switch claims.Role {
	case models.RoleStudent, models.RoleCurator, models.RoleElder:
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries an unknown role")
	}
	return claims, nil
}
