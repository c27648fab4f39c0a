package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

type InvestmentService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Wallets      *WalletService
	Transactions *TransactionService
}

func NewInvestmentService(db *gorm.DB, cfg *config.Config, log *zap.Logger, wallets *WalletService, transactions *TransactionService) *InvestmentService {
	return &InvestmentService{DB: db, Config: cfg, Log: log, Wallets: wallets, Transactions: transactions}
}

type CreateAssetDTO struct {
	AuthorID       uint             `json:"-"`
	AssetName      string           `json:"asset_name" binding:"required"`
	Location       string           `json:"location"`
	About          string           `json:"about"`
	Price          decimal.Decimal  `json:"price" binding:"required,gt=0,money"`
	Units          int64            `json:"units" binding:"required,gt=0"`
	OwnerClub      models.OwnerClub `json:"owner_club"`
	ROI            decimal.Decimal  `json:"roi"`
	MaturityDate   *time.Time       `json:"maturity_date"`
	InvestmentExit string           `json:"investment_exit"`
}

// CreateAsset lists a new asset with all of its units available.
func (s *InvestmentService) CreateAsset(ctx context.Context, dto CreateAssetDTO) (*models.InvestibleAsset, error) {
	if strings.TrimSpace(dto.AssetName) == "" {
		return nil, validationError("asset name is required")
	}
	if !dto.Price.IsPositive() || dto.Units <= 0 {
		return nil, validationError("price and units must be greater than zero")
	}
	if dto.OwnerClub == "" {
		dto.OwnerClub = models.OwnerClubAll
	}
	if !dto.OwnerClub.Valid() {
		return nil, validationError(fmt.Sprintf("invalid owner club %q", dto.OwnerClub))
	}

	asset := models.InvestibleAsset{
		AssetName:      strings.TrimSpace(dto.AssetName),
		Location:       dto.Location,
		About:          dto.About,
		Price:          dto.Price,
		Units:          dto.Units,
		AvailableUnits: dto.Units,
		OwnerClub:      dto.OwnerClub,
		ROI:            dto.ROI,
		MaturityDate:   dto.MaturityDate,
		InvestmentExit: dto.InvestmentExit,
		IsActive:       true,
		AuthorID:       dto.AuthorID,
	}
	if err := s.DB.WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return &asset, nil
}

// ListAssets returns active assets, optionally for one owner club.
func (s *InvestmentService) ListAssets(ctx context.Context, club models.OwnerClub, offset, limit int) ([]models.InvestibleAsset, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.InvestibleAsset{}).Where("is_active = ?", true)
	if club != "" {
		query = query.Where("owner_club = ?", club)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var assets []models.InvestibleAsset
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&assets).Error
	return assets, total, err
}

func (s *InvestmentService) GetAsset(ctx context.Context, uid string) (*models.InvestibleAsset, error) {
	var asset models.InvestibleAsset
	err := s.DB.WithContext(ctx).Where("uid = ?", uid).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("Asset not found", ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

type InvestDTO struct {
	UserID     uint              `json:"-"`
	AssetUID   string            `json:"asset_uid" binding:"required"`
	Units      int64             `json:"units" binding:"required,gt=0"`
	FundSource models.FundSource `json:"fund_source" binding:"required"`
}

type InvestmentOutcome struct {
	*PaymentOutcome
	Investment *models.Investment `json:"investment"`
}

// Invest buys units of an asset. The investment stays inactive until its
// transaction is applied.
func (s *InvestmentService) Invest(ctx context.Context, dto InvestDTO) (*InvestmentOutcome, error) {
	if dto.Units <= 0 {
		return nil, validationError("units must be greater than zero")
	}
	if err := payableSource(dto.FundSource); err != nil {
		return nil, err
	}
	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	if err := requirePaidMember(user); err != nil {
		return nil, err
	}
	asset, err := s.GetAsset(ctx, dto.AssetUID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive || asset.SoldOut {
		return nil, validationError("This asset is no longer available for investment")
	}
	if dto.Units > asset.AvailableUnits {
		return nil, validationError(fmt.Sprintf("Only %d units of this asset are available", asset.AvailableUnits))
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	amount := asset.PricePerUnit().Mul(decimal.NewFromInt(dto.Units))
	if dto.FundSource == models.FundSourceWallet {
		if _, err := s.Wallets.EnsureBalance(ctx, wallet.ID, amount); err != nil {
			return nil, err
		}
	}

	inv := &models.Investment{
		AssetID:  asset.ID,
		UserID:   user.ID,
		WalletID: wallet.ID,
		Units:    dto.Units,
		Amount:   amount,
	}
	var trx *models.Transaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		var err error
		trx, err = s.Transactions.Create(tx, CreateTransactionDTO{
			Initiator:   user.ID,
			WalletID:    wallet.ID,
			Amount:      amount,
			Currency:    wallet.Currency,
			Direction:   models.DirectionOutgoing,
			Type:        models.TxInvestment,
			FundSource:  dto.FundSource,
			Description: fmt.Sprintf("Investment of %d units in %s", dto.Units, asset.AssetName),
			EntityUID:   inv.UID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	inv.Asset = asset

	s.Log.Info("investment started", zap.String("reference", trx.Reference), zap.String("asset", asset.UID), zap.Int64("units", dto.Units))
	out, err := s.Transactions.Settle(ctx, trx, customerOf(user), PaymentRedirectPath, "Investment in "+asset.AssetName)
	if out != nil && trx.Status == models.TransactionSuccessful {
		inv.IsActive = true
		inv.Reference = trx.Reference
	}
	return &InvestmentOutcome{PaymentOutcome: out, Investment: inv}, err
}

// ListMine returns the user's investments with their assets.
func (s *InvestmentService) ListMine(ctx context.Context, userID uint, offset, limit int) ([]models.Investment, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Investment{}).Where("user_id = ?", userID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Investment
	err := query.Preload("Asset").Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
