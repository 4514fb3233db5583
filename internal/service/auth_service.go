package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Token types embedded in JWT claims.
const (
	TokenTypeStudent = "student"
	TokenTypeTeacher = "teacher"
)

var (
	// ErrInvalidCredentials is returned when username or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionActive is returned when a student already holds a live session
	// on another device.
	ErrSessionActive = errors.New("session already active on another device")
	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

// Claims is the JWT claim set issued by this service. The registered ID (jti)
// doubles as the single-device session token for students.
type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// AuthService handles login, registration and token validation.
type AuthService struct {
	users      *repository.UserRepository
	rdb        *redis.Client
	jwtSecret  []byte
	jwtExpiry  time.Duration
	bcryptCost int
	log        zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users *repository.UserRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		rdb:        rdb,
		jwtSecret:  []byte(cfg.JWTSecret),
		jwtExpiry:  cfg.JWTExpiry,
		bcryptCost: cfg.BcryptCost,
		log:        log.With().Str("component", "auth_service").Logger(),
	}
}

// LoginTeacher authenticates a teacher and issues a JWT.
func (s *AuthService) LoginTeacher(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.authenticate(ctx, username, password, model.RoleTeacher)
	if err != nil {
		return "", nil, err
	}

	token, _, err := s.issueToken(user, TokenTypeTeacher)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// LoginStudent authenticates a student, enforces single-device login and
// issues a JWT. If force is set, any existing session is invalidated.
func (s *AuthService) LoginStudent(ctx context.Context, username, password string, force bool) (string, *model.User, error) {
	user, err := s.authenticate(ctx, username, password, model.RoleStudent)
	if err != nil {
		return "", nil, err
	}

	sessionKey := config.CacheKey.StudentSessionKey(user.ID)
	if !force {
		existing, err := s.rdb.Get(ctx, sessionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", nil, fmt.Errorf("check session: %w", err)
		}
		if existing != "" {
			return "", nil, ErrSessionActive
		}
	}

	token, jti, err := s.issueToken(user, TokenTypeStudent)
	if err != nil {
		return "", nil, err
	}

	// The JTI stored here is the only one accepted for this student until it
	// expires or the student logs in again.
	if err := s.rdb.Set(ctx, sessionKey, jti, s.jwtExpiry).Err(); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	s.log.Info().Int("student_id", user.ID).Bool("force", force).Msg("student logged in")
	return token, user, nil
}

// Logout drops a student's active session. Teacher tokens have no server-side
// session state, so logout is a no-op for them.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims.TokenType != TokenTypeStudent {
		return nil
	}
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(claims.UserID)).Err()
}

// RegisterStudent creates a student account.
func (s *AuthService) RegisterStudent(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		Role:         model.RoleStudent,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Int("student_id", user.ID).Msg("student registered")
	return user, nil
}

// UpdateProfile changes a user's name and email.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, req *model.UpdateProfileRequest) (*model.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, req.Name, req.Email); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// ChangePassword verifies the old password and stores the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// GetProfile retrieves the account behind a token.
func (s *AuthService) GetProfile(ctx context.Context, userID int) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ValidateStudentSession checks that the token's JTI is still the active
// session for the student.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("no active session")
		}
		return err
	}
	if stored != jti {
		return fmt.Errorf("session superseded by another device")
	}
	return nil
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a plaintext password matches a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) authenticate(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Role != role {
		return nil, ErrInvalidCredentials
	}
	if !s.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) issueToken(user *model.User, tokenType string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := &Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}
