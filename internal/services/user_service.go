package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/models"
)

// UserService keeps the local mirror of identity records the ledger checks
// preconditions against.
type UserService struct {
	DB      *gorm.DB
	Wallets *WalletService
	Log     *zap.Logger
}

func NewUserService(db *gorm.DB, wallets *WalletService, log *zap.Logger) *UserService {
	return &UserService{DB: db, Wallets: wallets, Log: log}
}

type RegisterUserDTO struct {
	ID         uint             `json:"id"`
	Email      string           `json:"email" binding:"required,email"`
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	Role       models.Role      `json:"role"`
	KYCStatus  models.KYCStatus `json:"kyc_status"`
	ReferredBy string           `json:"referred_by"`
}

// Register stores the user mirror and creates the user's wallet. It is safe
// to call again for a user that already exists.
func (s *UserService) Register(ctx context.Context, dto RegisterUserDTO) (*models.User, *models.Wallet, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if email == "" {
		return nil, nil, validationError("email is required")
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			ID:         dto.ID,
			Email:      email,
			FirstName:  dto.FirstName,
			LastName:   dto.LastName,
			Role:       dto.Role,
			KYCStatus:  dto.KYCStatus,
			ReferredBy: strings.ToUpper(strings.TrimSpace(dto.ReferredBy)),
		}
		if user.Role == "" {
			user.Role = models.RoleUser
		}
		if user.KYCStatus == "" {
			user.KYCStatus = models.KYCPending
		}
		if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
		s.Log.Info("user registered", zap.Uint("user_id", user.ID))
	case err != nil:
		return nil, nil, err
	}

	wallet, err := s.Wallets.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return &user, wallet, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return loadUser(s.DB.WithContext(ctx), id)
}

// SetKYCStatus records the outcome of the external KYC review.
func (s *UserService) SetKYCStatus(ctx context.Context, id uint, status models.KYCStatus) error {
	switch status {
	case models.KYCApproved, models.KYCPending, models.KYCRejected:
	default:
		return validationError(fmt.Sprintf("invalid kyc status %q", status))
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("kyc_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func loadUser(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func customerOf(user *models.User) Customer {
	return Customer{
		Email: user.Email,
		Name:  user.FullName(),
	}
}

func requirePaidMember(user *models.User) error {
	if !user.HasPaidMembershipFee {
		return forbiddenError("You need to pay your membership fee to perform this action")
	}
	return nil
}
