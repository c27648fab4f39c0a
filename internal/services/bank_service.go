package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

const bankCacheTTL = 24 * time.Hour

var accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)

type BankService struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Config  *config.Config
	Log     *zap.Logger
	Wallets *WalletService
	Gateway Gateway
}

func NewBankService(db *gorm.DB, rdb *redis.Client, cfg *config.Config, log *zap.Logger, wallets *WalletService, gateway Gateway) *BankService {
	return &BankService{DB: db, Redis: rdb, Config: cfg, Log: log, Wallets: wallets, Gateway: gateway}
}

func bankCacheKey(country string) string {
	return "ledger:banks:" + country
}

func (s *BankService) country(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return s.Config.Gateway.Country
	}
	return country
}

// ListBanks serves the supported bank list from Redis, then the gateway,
// then the last copy stored in the database.
func (s *BankService) ListBanks(ctx context.Context, country string) ([]models.Bank, error) {
	country = s.country(country)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, bankCacheKey(country)).Bytes(); err == nil {
			var banks []models.Bank
			if json.Unmarshal(raw, &banks) == nil {
				return banks, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.Log.Warn("bank cache read failed", zap.Error(err))
		}
	}

	banks, err := s.RefreshBanks(ctx, country)
	if err == nil {
		return banks, nil
	}
	s.Log.Warn("bank list refresh failed, serving stored copy", zap.String("country", country), zap.Error(err))

	var stored []models.Bank
	if dbErr := s.DB.WithContext(ctx).Where("country = ?", country).Order("name").Find(&stored).Error; dbErr != nil {
		return nil, dbErr
	}
	if len(stored) == 0 {
		return nil, err
	}
	return stored, nil
}

// RefreshBanks pulls the bank list from the gateway into the database and cache.
func (s *BankService) RefreshBanks(ctx context.Context, country string) ([]models.Bank, error) {
	country = s.country(country)
	supported, err := s.Gateway.ListSupportedBanks(ctx, country)
	if err != nil {
		return nil, err
	}
	banks := make([]models.Bank, 0, len(supported))
	for _, b := range supported {
		if b.Code == "" {
			continue
		}
		banks = append(banks, models.Bank{Code: b.Code, Name: strings.TrimSpace(b.Name), Country: country})
	}
	if len(banks) > 0 {
		err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}, {Name: "country"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).CreateInBatches(&banks, 200).Error
		if err != nil {
			return nil, err
		}
	}
	if s.Redis != nil {
		if raw, err := json.Marshal(banks); err == nil {
			if err := s.Redis.Set(ctx, bankCacheKey(country), raw, bankCacheTTL).Err(); err != nil {
				s.Log.Warn("bank cache write failed", zap.Error(err))
			}
		}
	}
	s.Log.Info("bank list refreshed", zap.String("country", country), zap.Int("banks", len(banks)))
	return banks, nil
}

type LinkBankAccountDTO struct {
	UserID        uint   `json:"-"`
	BankCode      string `json:"bank_code" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
}

// LinkBankAccount resolves the account holder with the gateway and stores the
// account against the user's wallet.
func (s *BankService) LinkBankAccount(ctx context.Context, dto LinkBankAccountDTO) (*models.BankAccount, error) {
	dto.AccountNumber = strings.TrimSpace(dto.AccountNumber)
	if !accountNumberPattern.MatchString(dto.AccountNumber) {
		return nil, validationError("account number must be 10 digits")
	}
	banks, err := s.ListBanks(ctx, "")
	if err != nil {
		return nil, err
	}
	var bank *models.Bank
	for i := range banks {
		if banks[i].Code == dto.BankCode {
			bank = &banks[i]
			break
		}
	}
	if bank == nil {
		return nil, validationError("unknown bank code")
	}

	wallet, err := s.Wallets.ByUser(ctx, dto.UserID)
	if err != nil {
		return nil, err
	}

	var existing models.BankAccount
	err = s.DB.WithContext(ctx).
		Where("user_id = ? AND bank_code = ? AND account_number = ? AND is_active = ?", dto.UserID, dto.BankCode, dto.AccountNumber, true).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	resolved, err := s.Gateway.ResolveBankAccount(ctx, dto.BankCode, dto.AccountNumber)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, validationError("We could not verify this bank account")
	}

	account := models.BankAccount{
		UserID:        dto.UserID,
		WalletID:      wallet.ID,
		BankCode:      bank.Code,
		BankName:      bank.Name,
		AccountNumber: dto.AccountNumber,
		AccountName:   resolved.AccountName,
		IsActive:      true,
	}
	if err := s.DB.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BankService) ListAccounts(ctx context.Context, userID uint) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := s.DB.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).Order("id DESC").Find(&accounts).Error
	return accounts, err
}

// DeactivateAccount unlinks a bank account. Past withdrawals keep their copy
// of the account details.
func (s *BankService) DeactivateAccount(ctx context.Context, userID, accountID uint) error {
	res := s.DB.WithContext(ctx).Model(&models.BankAccount{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundError("Bank account not found", ErrEntityNotFound)
	}
	return nil
}
