package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yamdb/yamdb-api/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetUserByIdentity looks up the account bound to exactly this username and email.
func (r *UserRepository) GetUserByIdentity(ctx context.Context, username, email string) (*models.User, error) {
	return r.first(ctx, "username = ? AND email = ?", username, email)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// SetConfirmationCode stores code for a user that has none yet. If another
// writer set a code first, nothing changes and ErrCodeAlreadySet is returned.
func (r *UserRepository) SetConfirmationCode(ctx context.Context, id uuid.UUID, code string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND confirmation_code = ''", id).
		Update("confirmation_code", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeAlreadySet
	}
	return nil
}

// UpdateProfile persists the editable profile columns of user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).
		Model(user).
		Select("username", "email", "first_name", "last_name", "bio", "role").
		Updates(user).Error
	return translate(err)
}

// ListUsers returns users ordered by username, optionally filtered by a
// case-insensitive username fragment, plus the unpaged total.
func (r *UserRepository) ListUsers(ctx context.Context, search string, page Page) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if search != "" {
		q = q.Where("LOWER(username) LIKE ? ESCAPE '\\'", likePattern(search))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := page.apply(q.Order("username ASC")).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// DeleteUser removes a user together with everything they authored.
func (r *UserRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authored := tx.Model(&models.Review{}).Select("id").Where("author_id = ?", id)
		if err := tx.Where("author_id = ? OR review_id IN (?)", id, authored).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
}
