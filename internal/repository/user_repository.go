package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if conflict := duplicateUserError(result.Error); conflict != nil {
			return conflict
		}
		return apierrors.Wrap(result.Error, "failed to create user")
	}
	return nil
}

// duplicateUserError maps a unique-constraint violation to the conflict
// error naming the colliding field. The constraint check stays in the
// store so a concurrent duplicate insert surfaces the same way as a
// sequential one.
func duplicateUserError(err error) *apierrors.Error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return apierrors.Conflict("Email is already registered.")
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return apierrors.Conflict("Username is already registered.")
	}
	return apierrors.Conflict("Username or email is already registered.")
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, apierrors.Wrap(result.Error, "failed to get user by ID")
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "email = ?", email)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, apierrors.Wrap(result.Error, "failed to get user by email")
	}

	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "username = ?", username)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, apierrors.Wrap(result.Error, "failed to get user by username")
	}

	return &user, nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_login_at": at,
		"updated_at":    time.Now(),
	})

	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to update last login")
	}

	if result.RowsAffected == 0 {
		return apierrors.ErrNotFound
	}

	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"is_active":  user.IsActive,
		"updated_at": time.Now(),
	})

	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to update user")
	}

	if result.RowsAffected == 0 {
		return apierrors.ErrNotFound
	}

	return nil
}
