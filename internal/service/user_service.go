package service

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/yamdb/yamdb-api/internal/config"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/repository"
	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

// UserService backs the admin user directory and the /users/me profile.
type UserService struct {
	userRepo *repository.UserRepository
	rules    config.Rules
}

func NewUserService(userRepo *repository.UserRepository, rules config.Rules) *UserService {
	return &UserService{userRepo: userRepo, rules: rules}
}

// CreateUserRequest is an admin-created account. It has no confirmation
// code until the user signs up with the same username and email.
type CreateUserRequest struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Bio       string      `json:"bio"`
	Role      models.Role `json:"role"`
}

// UserPatch carries the fields of a partial update; nil means unchanged.
type UserPatch struct {
	Username  *string      `json:"username"`
	Email     *string      `json:"email"`
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Bio       *string      `json:"bio"`
	Role      *models.Role `json:"role"`
}

func (s *UserService) List(ctx context.Context, search string, page repository.Page) ([]models.User, int64, error) {
	return s.userRepo.ListUsers(ctx, search, page)
}

func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	start := time.Now()
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	err := fromValidation(validation.ValidateStruct(&req,
		validation.Field(&req.Username, s.usernameRules(true)...),
		validation.Field(&req.Email, s.emailRules(true)...),
		validation.Field(&req.FirstName, validation.RuneLength(0, s.rules.MaxUsernameLength)),
		validation.Field(&req.LastName, validation.RuneLength(0, s.rules.MaxUsernameLength)),
		validation.Field(&req.Role, roleRule),
	))
	if err != nil {
		return nil, err
	}

	if err := s.ensureIdentityFree(ctx, req.Username, req.Email, nil); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       cleanText(req.Bio),
		Role:      req.Role,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("", "username or email already in use")
		}
		logger.Log.Error("Failed to create user",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("User created by admin",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.Duration("duration", time.Since(start)),
	)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFoundError("user %q not found", username)
	}
	return user, nil
}

// Update applies an admin patch, role included.
func (s *UserService) Update(ctx context.Context, username string, patch UserPatch) (*models.User, error) {
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, user, patch)
}

func (s *UserService) Delete(ctx context.Context, username string) error {
	user, err := s.Get(ctx, username)
	if err != nil {
		return err
	}
	if err := s.userRepo.DeleteUser(ctx, user.ID); err != nil {
		logger.Log.Error("Failed to delete user",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return err
	}
	logger.Log.Info("User deleted", zap.String("user_id", user.ID.String()))
	return nil
}

// UpdateMe applies a self-service patch. A role in the patch is ignored.
func (s *UserService) UpdateMe(ctx context.Context, me *models.User, patch UserPatch) (*models.User, error) {
	if patch.Role != nil {
		logger.Log.Debug("Ignoring role change on own profile",
			zap.String("user_id", me.ID.String()),
		)
		patch.Role = nil
	}
	fresh, err := s.userRepo.GetUserByID(ctx, me.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, NotFoundError("user %q not found", me.Username)
	}
	return s.apply(ctx, fresh, patch)
}

func (s *UserService) apply(ctx context.Context, user *models.User, patch UserPatch) (*models.User, error) {
	err := fromValidation(validation.ValidateStruct(&patch,
		validation.Field(&patch.Username, s.usernameRules(false)...),
		validation.Field(&patch.Email, s.emailRules(false)...),
		validation.Field(&patch.FirstName, validation.RuneLength(0, s.rules.MaxUsernameLength)),
		validation.Field(&patch.LastName, validation.RuneLength(0, s.rules.MaxUsernameLength)),
		validation.Field(&patch.Role, validation.NilOrNotEmpty, roleRule),
	))
	if err != nil {
		return nil, err
	}

	newUsername, newEmail := user.Username, user.Email
	if patch.Username != nil {
		newUsername = *patch.Username
	}
	if patch.Email != nil {
		newEmail = *patch.Email
	}
	if newUsername != user.Username || newEmail != user.Email {
		if err := s.ensureIdentityFree(ctx, newUsername, newEmail, user); err != nil {
			return nil, err
		}
	}

	user.Username, user.Email = newUsername, newEmail
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Bio != nil {
		user.Bio = cleanText(*patch.Bio)
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("", "username or email already in use")
		}
		logger.Log.Error("Failed to update user",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return user, nil
}

// ensureIdentityFree rejects a username or email held by anyone but self.
func (s *UserService) ensureIdentityFree(ctx context.Context, username, email string, self *models.User) error {
	byName, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if byName != nil && (self == nil || byName.ID != self.ID) {
		return ConflictError("username", msgUsernameTaken)
	}
	byEmail, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if byEmail != nil && (self == nil || byEmail.ID != self.ID) {
		return ConflictError("email", msgEmailTaken)
	}
	return nil
}

func (s *UserService) usernameRules(required bool) []validation.Rule {
	presence := validation.Rule(validation.NilOrNotEmpty)
	if required {
		presence = validation.Required
	}
	return []validation.Rule{
		presence,
		validation.RuneLength(1, s.rules.MaxUsernameLength),
		validation.Match(usernameRegex).Error("may contain only letters, digits and @/./+/-/_"),
		validation.By(notReservedUsername),
	}
}

func (s *UserService) emailRules(required bool) []validation.Rule {
	presence := validation.Rule(validation.NilOrNotEmpty)
	if required {
		presence = validation.Required
	}
	return []validation.Rule{
		presence,
		validation.RuneLength(1, s.rules.MaxEmailLength),
		is.EmailFormat,
	}
}

var roleRule = validation.In(models.RoleUser, models.RoleModerator, models.RoleAdmin).
	Error("must be one of user, moderator, admin")
