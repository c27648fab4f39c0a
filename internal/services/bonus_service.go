package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
	"ledger-service/internal/tasks"
	"ledger-service/pkg/common"
)

const (
	referralCodeLength   = 6
	referralCodeAttempts = 10
)

// BonusService runs the referral and affiliate bonus ledgers.
type BonusService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Helper       *HelperService
	Wallets      *WalletService
	Transactions *TransactionService
}

func NewBonusService(db *gorm.DB, cfg *config.Config, log *zap.Logger, helper *HelperService, wallets *WalletService, transactions *TransactionService) *BonusService {
	return &BonusService{DB: db, Config: cfg, Log: log, Helper: helper, Wallets: wallets, Transactions: transactions}
}

func (s *BonusService) newCode(db *gorm.DB) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := common.GenerateCode(referralCodeLength)
		var n, m int64
		if err := db.Model(&models.ReferralProfile{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if err := db.Model(&models.AffiliateCode{}).Where("code = ?", code).Count(&m).Error; err != nil {
			return "", err
		}
		if n+m == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique referral code after %d attempts", referralCodeAttempts)
}

// ReferralProfile returns the user's profile, creating it on first use.
func (s *BonusService) ReferralProfile(ctx context.Context, userID uint) (*models.ReferralProfile, error) {
	user, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	if err := requirePaidMember(user); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var profile models.ReferralProfile
	err = db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	code, err := s.newCode(db)
	if err != nil {
		return nil, err
	}
	profile = models.ReferralProfile{
		UserID:             userID,
		Code:               code,
		ReferralBonus:      decimal.Zero,
		TotalReferralBonus: decimal.Zero,
		IsActive:           true,
	}
	if err := db.Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("create referral profile: %w", err)
	}
	return &profile, nil
}

// BecomeAffiliate switches a verified, paid member to the affiliate role.
func (s *BonusService) BecomeAffiliate(ctx context.Context, userID uint) error {
	user, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return err
	}
	if !user.KYCApproved() {
		return forbiddenError("Your KYC has not been approved")
	}
	if err := requirePaidMember(user); err != nil {
		return err
	}
	if user.Role == models.RoleAffiliate {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", models.RoleAffiliate).Error
}

func (s *BonusService) affiliate(ctx context.Context, userID uint) (*models.User, error) {
	user, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAffiliate {
		return nil, forbiddenError("Only affiliates can perform this action")
	}
	return user, nil
}

// AffiliateProfile returns the affiliate's profile and codes, creating the
// profile and a first code on first use.
func (s *BonusService) AffiliateProfile(ctx context.Context, userID uint) (*models.AffiliateProfile, error) {
	if _, err := s.affiliate(ctx, userID); err != nil {
		return nil, err
	}
	var profile models.AffiliateProfile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&profile).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		profile = models.AffiliateProfile{UserID: userID, IsActive: true}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		_, err = s.addCode(tx, profile.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Preload("Codes").Where("id = ?", profile.ID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// AddAffiliateCode gives the affiliate another referral code.
func (s *BonusService) AddAffiliateCode(ctx context.Context, userID uint) (*models.AffiliateCode, error) {
	profile, err := s.AffiliateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.addCode(s.DB.WithContext(ctx), profile.ID)
}

func (s *BonusService) addCode(tx *gorm.DB, profileID uint) (*models.AffiliateCode, error) {
	code, err := s.newCode(tx)
	if err != nil {
		return nil, err
	}
	ac := models.AffiliateCode{
		AffiliateID: profileID,
		Code:        code,
		Bonus:       decimal.Zero,
		TotalBonus:  decimal.Zero,
		IsActive:    true,
	}
	if err := tx.Create(&ac).Error; err != nil {
		return nil, fmt.Errorf("create affiliate code: %w", err)
	}
	return &ac, nil
}

// WithdrawReferralBonus moves the whole referral bonus into the wallet.
func (s *BonusService) WithdrawReferralBonus(ctx context.Context, userID uint) (*models.Transaction, error) {
	user, wallet, err := s.withdrawer(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.ReferralProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var trx *models.Transaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ReferralProfile
		if err := tx.Where("id = ?", profile.ID).First(&current).Error; err != nil {
			return err
		}
		amount := current.ReferralBonus
		if amount.LessThan(s.Config.Ledger.ReferralWithdrawalThreshold) || !amount.IsPositive() {
			return ErrBelowThreshold
		}
		res := tx.Model(&models.ReferralProfile{}).
			Where("id = ? AND referral_bonus = ?", current.ID, amount).
			UpdateColumn("referral_bonus", decimal.Zero)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		trx, err = s.deposit(tx, user, wallet, amount, models.TxReferralBonusDeposit, "Referral bonus deposit of ₦"+amount.StringFixed(2))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("referral bonus withdrawn", zap.String("reference", trx.Reference), zap.Uint("user_id", userID))
	s.Transactions.Announce(ctx, trx)
	return trx, nil
}

// WithdrawAffiliateBonus moves the bonus of every code into the wallet.
func (s *BonusService) WithdrawAffiliateBonus(ctx context.Context, userID uint) (*models.Transaction, error) {
	if _, err := s.affiliate(ctx, userID); err != nil {
		return nil, err
	}
	user, wallet, err := s.withdrawer(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.AffiliateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var trx *models.Transaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes []models.AffiliateCode
		if err := tx.Where("affiliate_id = ?", profile.ID).Find(&codes).Error; err != nil {
			return err
		}
		current := models.AffiliateProfile{Codes: codes}
		amount := current.ReferralBonus()
		if amount.LessThan(s.Config.Ledger.AffiliateWithdrawalThreshold) || !amount.IsPositive() {
			return ErrBelowThreshold
		}
		for _, c := range codes {
			if !c.Bonus.IsPositive() {
				continue
			}
			res := tx.Model(&models.AffiliateCode{}).
				Where("id = ? AND bonus = ?", c.ID, c.Bonus).
				UpdateColumn("bonus", decimal.Zero)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
		}
		trx, err = s.deposit(tx, user, wallet, amount, models.TxAffiliateBonusDeposit, "Affiliate bonus deposit of ₦"+amount.StringFixed(2))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("affiliate bonus withdrawn", zap.String("reference", trx.Reference), zap.Uint("user_id", userID))
	s.Transactions.Announce(ctx, trx)
	return trx, nil
}

func (s *BonusService) withdrawer(ctx context.Context, userID uint) (*models.User, *models.Wallet, error) {
	user, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, nil, err
	}
	if !user.KYCApproved() {
		return nil, nil, forbiddenError("Your KYC has not been approved")
	}
	wallet, err := s.Wallets.ByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, wallet, nil
}

func (s *BonusService) deposit(tx *gorm.DB, user *models.User, wallet *models.Wallet, amount decimal.Decimal, typ models.TransactionType, description string) (*models.Transaction, error) {
	trx, err := s.Transactions.Create(tx, CreateTransactionDTO{
		Initiator:   user.ID,
		WalletID:    wallet.ID,
		Amount:      amount,
		Currency:    wallet.Currency,
		Direction:   models.DirectionIncoming,
		Type:        typ,
		FundSource:  models.FundSourceNone,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	return trx, s.Transactions.SettleInTx(tx, trx)
}

// CreditReferral credits the owner of code once per referee membership payment.
// Unknown codes and self referrals are ignored.
func (s *BonusService) CreditReferral(ctx context.Context, p tasks.ReferralCreditPayload) error {
	code := strings.ToUpper(strings.TrimSpace(p.Code))
	if code == "" || p.Reference == "" {
		return validationError("referral code and reference are required")
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.ReferralProfile
		err := tx.Where("code = ?", code).First(&profile).Error
		if err == nil {
			if profile.UserID == p.RefereeID {
				return nil
			}
			ok, err := s.Helper.MarkApplied(tx, models.EntityReferralCode, profile.ID, p.Reference)
			if err != nil || !ok {
				return err
			}
			bonus := s.Config.Ledger.ReferralBonus
			referee, err := referee(tx, p.RefereeID)
			if err != nil {
				return err
			}
			err = tx.Create(&models.Referral{
				ProfileID:         profile.ID,
				ReferredBy:        profile.UserID,
				ReferredUserID:    p.RefereeID,
				ReferredUserEmail: referee.Email,
				ReferredUserName:  referee.FullName(),
				Code:              profile.Code,
				Reference:         p.Reference,
				Bonus:             bonus,
			}).Error
			if err != nil {
				return err
			}
			s.Log.Info("referral credited", zap.String("code", code), zap.String("reference", p.Reference))
			return tx.Model(&models.ReferralProfile{}).Where("id = ?", profile.ID).UpdateColumns(map[string]interface{}{
				"referral_count":       gorm.Expr("referral_count + 1"),
				"referral_bonus":       gorm.Expr("referral_bonus + ?", bonus),
				"total_referral_bonus": gorm.Expr("total_referral_bonus + ?", bonus),
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var ac models.AffiliateCode
		err = tx.Where("code = ? AND is_active = ?", code, true).First(&ac).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Log.Warn("referral code not found", zap.String("code", code), zap.String("reference", p.Reference))
			return nil
		}
		if err != nil {
			return err
		}
		var owner models.AffiliateProfile
		if err := tx.Where("id = ?", ac.AffiliateID).First(&owner).Error; err != nil {
			return err
		}
		if owner.UserID == p.RefereeID {
			return nil
		}
		ok, err := s.Helper.MarkApplied(tx, models.EntityAffiliateCode, ac.ID, p.Reference)
		if err != nil || !ok {
			return err
		}
		bonus := s.Config.Ledger.AffiliateBonus
		referee, err := referee(tx, p.RefereeID)
		if err != nil {
			return err
		}
		err = tx.Create(&models.AffiliateReferral{
			AffiliateID:       owner.ID,
			Affiliate:         owner.UserID,
			CodeID:            ac.ID,
			Code:              ac.Code,
			ReferredUserID:    p.RefereeID,
			ReferredUserEmail: referee.Email,
			ReferredUserName:  referee.FullName(),
			Reference:         p.Reference,
			Bonus:             bonus,
		}).Error
		if err != nil {
			return err
		}
		s.Log.Info("affiliate referral credited", zap.String("code", code), zap.String("reference", p.Reference))
		return tx.Model(&models.AffiliateCode{}).Where("id = ?", ac.ID).UpdateColumns(map[string]interface{}{
			"count":       gorm.Expr("count + 1"),
			"bonus":       gorm.Expr("bonus + ?", bonus),
			"total_bonus": gorm.Expr("total_bonus + ?", bonus),
		}).Error
	})
}

// referee loads the referred member. A referee missing from the mirror still
// earns the referrer a bonus, recorded without contact details.
func referee(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := tx.Where("id = ?", id).Limit(1).Find(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type ReferralFilter struct {
	Search string
	Code   string
	CodeID uint
}

func (f ReferralFilter) apply(query *gorm.DB) *gorm.DB {
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("referred_user_name LIKE ? OR referred_user_email LIKE ?", like, like)
	}
	if f.Code != "" {
		query = query.Where("code = ?", strings.ToUpper(strings.TrimSpace(f.Code)))
	}
	if f.CodeID != 0 {
		query = query.Where("code_id = ?", f.CodeID)
	}
	return query
}

// ListReferrals returns the members credited to the user's referral code, newest first.
func (s *BonusService) ListReferrals(ctx context.Context, userID uint, filter ReferralFilter, offset, limit int) ([]models.Referral, int64, error) {
	filter.CodeID = 0
	query := filter.apply(s.DB.WithContext(ctx).Model(&models.Referral{}).Where("referred_by = ?", userID))
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Referral
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// ListAffiliateReferrals returns the members credited to any of the
// affiliate's codes, newest first.
func (s *BonusService) ListAffiliateReferrals(ctx context.Context, userID uint, filter ReferralFilter, offset, limit int) ([]models.AffiliateReferral, int64, error) {
	if _, err := s.affiliate(ctx, userID); err != nil {
		return nil, 0, err
	}
	query := filter.apply(s.DB.WithContext(ctx).Model(&models.AffiliateReferral{}).Where("affiliate_user_id = ?", userID))
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.AffiliateReferral
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
