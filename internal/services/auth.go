package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/utils"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
)

const (
	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"

	LoginTypePassword = "m.login.password"

	invalidCredentialsMessage = "Invalid username or password."
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	domain      string
}

func NewAuthService(db *gorm.DB, ldapService *LDAPService, jwtCfg *config.JWTConfig, domain string) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapService,
		jwtConfig:   jwtCfg,
		domain:      domain,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Type     string `json:"type"`
	User     string `json:"user" binding:"required"` // localpart or full user id
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	HomeServer  string `json:"home_server"`
}

// Register creates a local account with an initial profile.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	localpart := strings.ToLower(req.Username)
	if !utils.ValidLocalpart(localpart) {
		return nil, apperr.InvalidParam("User ID can only contain characters a-z, 0-9, or '_-./='")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserID:       utils.UserID(localpart, s.domain),
		Localpart:    localpart,
		PasswordHash: hash,
		AuthType:     AuthTypeLocal,
		IsActive:     true,
	}
	if err := s.createUser(ctx, user, localpart); err != nil {
		return nil, err
	}

	logger.Info().Str("user_id", user.UserID).Msg("user registered")
	return s.issue(user)
}

// Login verifies a password against the local account or, when enabled and
// the account is not local, against LDAP. LDAP users are provisioned on
// first login.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Type != "" && req.Type != LoginTypePassword {
		return nil, apperr.InvalidParam("Unknown login type.")
	}

	localpart := strings.ToLower(req.User)
	if strings.HasPrefix(localpart, "@") {
		lp, domain, err := utils.SplitUserID(localpart)
		if err != nil || domain != s.domain {
			return nil, apperr.Forbidden(invalidCredentialsMessage)
		}
		localpart = lp
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("localpart = ?", localpart).Take(&user).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStorage(err, "")
	}

	switch {
	case found && user.AuthType == AuthTypeLocal:
		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			return nil, apperr.Forbidden(invalidCredentialsMessage)
		}
	case s.ldapService.Enabled():
		ldapUser, err := s.ldapService.Authenticate(localpart, req.Password)
		if err != nil {
			logger.Warn().Err(err).Str("localpart", localpart).Msg("LDAP login failed")
			return nil, apperr.Forbidden(invalidCredentialsMessage)
		}
		if !found {
			user = models.User{
				UserID:    utils.UserID(localpart, s.domain),
				Localpart: localpart,
				AuthType:  AuthTypeLDAP,
				IsActive:  true,
			}
			if err := s.createUser(ctx, &user, ldapUser.DisplayName); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apperr.Forbidden(invalidCredentialsMessage)
	}

	if !user.IsActive {
		return nil, apperr.Forbidden("This account has been deactivated.")
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(&user).Update("last_login", &now)

	return s.issue(&user)
}

// Verify resolves an access token to an active user id.
func (s *AuthService) Verify(ctx context.Context, token string) (string, error) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return "", apperr.UnknownToken()
	}

	var user models.User
	err = s.db.WithContext(ctx).Select("user_id", "is_active").Where("user_id = ?", claims.UserID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		return "", apperr.UnknownToken()
	}
	if err != nil {
		return "", apperr.FromStorage(err, "")
	}
	return user.UserID, nil
}

func (s *AuthService) createUser(ctx context.Context, user *models.User, displayname string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("localpart = ?", user.Localpart).Count(&count).Error; err != nil {
			return apperr.FromStorage(err, "")
		}
		if count > 0 {
			return apperr.UserInUse("User ID already taken.")
		}
		if err := tx.Create(user).Error; err != nil {
			return apperr.FromStorage(err, "")
		}

		profile := models.Profile{UserID: user.UserID}
		if displayname != "" {
			profile.Displayname = &displayname
		}
		return apperr.FromStorage(tx.Create(&profile).Error, "")
	})
}

func (s *AuthService) issue(user *models.User) (*LoginResponse, error) {
	token, err := utils.GenerateToken(user.UserID, user.Localpart, s.jwtConfig.ExpireHour)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		UserID:      user.UserID,
		AccessToken: token,
		HomeServer:  s.domain,
	}, nil
}
