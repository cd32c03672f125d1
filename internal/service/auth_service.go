package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/notify"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/internal/utils"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

var (
	usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

	msgUsernameTaken = "username already in use"
	msgEmailTaken    = "email already in use"
	msgInvalidCode   = "invalid confirmation code"
	msgCodeRace      = "another signup issued a confirmation code at the same time; sign up again to receive it"
)

// AuthOptions carries the secrets and channel settings of the auth flow.
type AuthOptions struct {
	JWTSecret     string
	MailFrom      string
	NotifyTimeout time.Duration
}

type AuthService struct {
	userRepo *repository.UserRepository
	notifier notify.Notifier
	rules    config.Rules
	opts     AuthOptions
}

func NewAuthService(userRepo *repository.UserRepository, notifier notify.Notifier, rules config.Rules, opts AuthOptions) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		notifier: notifier,
		rules:    rules,
		opts:     opts,
	}
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupResult echoes the accepted identity.
type SignupResult struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

// Signup sends a confirmation code for (username, email).
//
// An existing account with exactly this pair gets a code minted if it has
// none yet, or its current code re-sent otherwise. A new pair creates the
// account unless the username or the email is already bound elsewhere.
// The code is always delivered before anything is written.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	start := time.Now()

	logger.Log.Debug("Processing signup",
		zap.String("username", req.Username),
		zap.String("email", req.Email),
	)

	if err := s.validateSignup(req); err != nil {
		logger.Log.Warn("Signup validation failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}

	result := &SignupResult{Username: req.Username, Email: req.Email}

	existing, err := s.userRepo.GetUserByIdentity(ctx, req.Username, req.Email)
	if err != nil {
		logger.Log.Error("Failed to look up signup identity",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}

	if existing != nil {
		if existing.HasConfirmationCode() {
			if err := s.deliver(ctx, existing.Username, existing.Email, existing.ConfirmationCode, "updated"); err != nil {
				return nil, err
			}
			logger.Log.Info("Confirmation code re-sent",
				zap.String("user_id", existing.ID.String()),
				zap.Duration("total_duration", time.Since(start)),
			)
			return result, nil
		}

		code, err := utils.GenerateConfirmationCode(s.rules.ConfirmationCodeLength)
		if err != nil {
			return nil, err
		}
		if err := s.deliver(ctx, existing.Username, existing.Email, code, "updated"); err != nil {
			return nil, err
		}
		if err := s.userRepo.SetConfirmationCode(ctx, existing.ID, code); err != nil {
			if errors.Is(err, repository.ErrCodeAlreadySet) {
				// A concurrent signup stored its code first; the one just sent is void.
				logger.Log.Warn("Concurrent signup stored a code first",
					zap.String("user_id", existing.ID.String()),
				)
				return nil, ConflictError("", msgCodeRace)
			}
			logger.Log.Error("Code delivered but not stored",
				zap.String("user_id", existing.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		logger.Log.Info("Confirmation code issued for existing user",
			zap.String("user_id", existing.ID.String()),
			zap.Duration("total_duration", time.Since(start)),
		)
		return result, nil
	}

	if err := s.checkIdentityFree(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}

	code, err := utils.GenerateConfirmationCode(s.rules.ConfirmationCodeLength)
	if err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, req.Username, req.Email, code, "created"); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:         req.Username,
		Email:            req.Email,
		Role:             models.RoleUser,
		ConfirmationCode: code,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent signup for the same username or email.
			if conflict := s.checkIdentityFree(ctx, req.Username, req.Email); conflict != nil {
				return nil, conflict
			}
			return nil, ConflictError("", "username or email already in use")
		}
		logger.Log.Error("Code delivered but user not created",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("User signed up",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Duration("total_duration", time.Since(start)),
	)
	return result, nil
}

// IssueToken exchanges a username and confirmation code for a bearer token.
// The code stays valid afterwards.
func (s *AuthService) IssueToken(ctx context.Context, req TokenRequest) (string, error) {
	if err := s.validateTokenRequest(req); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		logger.Log.Error("Failed to load user for token",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return "", err
	}
	if user == nil {
		return "", NotFoundError("user %q not found", req.Username)
	}

	if !user.HasConfirmationCode() ||
		subtle.ConstantTimeCompare([]byte(user.ConfirmationCode), []byte(req.ConfirmationCode)) != 1 {
		logger.Log.Warn("Confirmation code mismatch",
			zap.String("user_id", user.ID.String()),
		)
		return "", ValidationError("confirmation_code", msgInvalidCode)
	}

	token, err := utils.GenerateToken(user, s.opts.JWTSecret, s.rules.TokenLifetime)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return "", err
	}

	logger.Log.Info("Token issued",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.EffectiveRole())),
	)
	return token, nil
}

// checkIdentityFree reports which half of the pair is already taken.
func (s *AuthService) checkIdentityFree(ctx context.Context, username, email string) error {
	byName, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if byName != nil {
		logger.Log.Warn("Signup rejected, username taken", zap.String("username", username))
		return ConflictError("username", msgUsernameTaken)
	}

	byEmail, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if byEmail != nil {
		logger.Log.Warn("Signup rejected, email taken", zap.String("email", email))
		return ConflictError("email", msgEmailTaken)
	}
	return nil
}

// deliver sends the code within the notify timeout. outcome names what did
// not happen to the account if delivery fails.
func (s *AuthService) deliver(ctx context.Context, username, email, code, outcome string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	msg := notify.ConfirmationMessage(s.opts.MailFrom, email, username, code)
	if err := s.notifier.Send(ctx, msg); err != nil {
		logger.Log.Error("Confirmation delivery failed",
			zap.String("username", username),
			zap.String("email", email),
			zap.Error(err),
		)
		return DeliveryError(fmt.Sprintf(
			"could not send confirmation email to %s; user %s was not %s", email, username, outcome))
	}
	return nil
}

func (s *AuthService) validateSignup(req SignupRequest) error {
	return fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Username,
			validation.Required,
			validation.RuneLength(1, s.rules.MaxUsernameLength),
			validation.Match(usernameRegex).Error("may contain only letters, digits and @/./+/-/_"),
			validation.By(notReservedUsername),
		),
		validation.Field(&req.Email,
			validation.Required,
			validation.RuneLength(1, s.rules.MaxEmailLength),
			is.EmailFormat,
		),
	))
}

func (s *AuthService) validateTokenRequest(req TokenRequest) error {
	return fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required, validation.RuneLength(1, s.rules.MaxUsernameLength)),
		validation.Field(&req.ConfirmationCode, validation.Required, validation.RuneLength(1, s.rules.ConfirmationCodeLength)),
	))
}

// notReservedUsername rejects "me", which would shadow /users/me.
func notReservedUsername(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	name, _ := v.(string)
	if strings.EqualFold(name, "me") {
		return errors.New(`username "me" is not allowed`)
	}
	return nil
}
