package services

import (
	"context"
	"strings"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/repository"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const UserContextKey contextKey = "user"

// tokenTTL is the fixed validity window of an issued bearer token.
const tokenTTL = 7 * 24 * time.Hour

const invalidCredentialsMessage = "Invalid email or password."

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	VerifyToken(ctx context.Context, tokenString string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	var missing []string
	if username == "" {
		missing = append(missing, "username is required")
	}
	if email == "" {
		missing = append(missing, "email is required")
	}
	if password == "" {
		missing = append(missing, "password is required")
	}
	if len(missing) > 0 {
		return nil, "", apierrors.Validation(strings.Join(missing, ", "))
	}

	// Pre-check both unique fields so the conflict message can name the
	// colliding one. The store's unique constraints remain the source of
	// truth under concurrent registration.
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, "", apierrors.Conflict("Email is already registered.")
	} else if err != apierrors.ErrNotFound {
		return nil, "", err
	}
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, "", apierrors.Conflict("Username is already registered.")
	} else if err != apierrors.ErrNotFound {
		return nil, "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apierrors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", apierrors.Wrap(err, "failed to sign token")
	}

	return user, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if err == apierrors.ErrNotFound {
			// Same message as a bad password so the response does not
			// reveal whether the email exists.
			return nil, "", apierrors.Auth(invalidCredentialsMessage)
		}
		return nil, "", err
	}

	if !user.IsActive {
		return nil, "", apierrors.Auth("Account is deactivated. Please contact support.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apierrors.Auth(invalidCredentialsMessage)
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLoginAt = &now

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", apierrors.Wrap(err, "failed to sign token")
	}

	return user, token, nil
}

// issueToken signs a bearer token carrying only the user id; protected
// routes re-fetch the user so deactivation takes effect immediately.
func (s *authService) issueToken(userID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	})

	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierrors.Auth("Invalid token.")
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, apierrors.Auth("Invalid or expired token.")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierrors.Auth("Invalid token.")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, apierrors.Auth("Invalid token.")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if err == apierrors.ErrNotFound {
			return nil, apierrors.Auth("Invalid or expired token.")
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, apierrors.Auth("Account is deactivated. Please contact support.")
	}

	return user, nil
}

func (s *authService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Helper function to add the authenticated user to context
func WithUserContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// Helper function to get the authenticated user from context
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
