package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials 邮箱或密码不正确
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService 认证服务
type AuthService struct {
	employeeRepo *repository.EmployeeRepository
	rdb          *redis.Client
	cfg          *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(employeeRepo *repository.EmployeeRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		employeeRepo: employeeRepo,
		rdb:          rdb,
		cfg:          cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 邮箱+密码登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*entity.Employee, *TokenPair, error) {
	employee, err := s.employeeRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if employee.Status != entity.EmployeeStatusActive {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokenPair, err := s.generateTokenPair(ctx, employee)
	if err != nil {
		return nil, nil, fmt.Errorf("generate token: %w", err)
	}

	return employee, tokenPair, nil
}

// generateTokenPair 生成Token对
func (s *AuthService) generateTokenPair(ctx context.Context, employee *entity.Employee) (*TokenPair, error) {
	now := time.Now()
	jti := uuid.New().String()

	roles := make([]string, 0, len(employee.Roles))
	for _, r := range employee.Roles {
		if str, ok := r.(string); ok {
			roles = append(roles, str)
		}
	}

	accessClaims := jwt.MapClaims{
		"sub":        employee.ID,
		"uid":        employee.ID,
		"name":       employee.Name,
		"email":      employee.Email,
		"department": employee.Department,
		"roles":      roles,
		"iss":        s.cfg.JWT.Issuer,
		"iat":        now.Unix(),
		"exp":        now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":        jti,
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  employee.ID,
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	s.rdb.Set(ctx, "token:refresh:"+refreshJti, employee.ID, s.cfg.JWT.RefreshTokenExpire)

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// RefreshToken 刷新Token，旧refresh token一次性作废
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims["type"] != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	jti, _ := claims["jti"].(string)
	employeeID, err := s.rdb.Get(ctx, "token:refresh:"+jti).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh token expired or invalid")
	}

	employee, err := s.employeeRepo.FindByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("employee not found")
	}

	s.rdb.Del(ctx, "token:refresh:"+jti)

	return s.generateTokenPair(ctx, employee)
}

// Logout 登出，吊销refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenString string) error {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if jti, ok := claims["jti"].(string); ok {
			s.rdb.Del(ctx, "token:refresh:"+jti)
		}
	}
	return nil
}

// GetCurrentUser 获取当前登录员工
func (s *AuthService) GetCurrentUser(ctx context.Context, employeeID string) (*entity.Employee, error) {
	return s.employeeRepo.FindByID(ctx, employeeID)
}
