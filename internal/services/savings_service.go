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

var intervalLength = map[models.SavingsInterval]time.Duration{
	models.IntervalDaily:     24 * time.Hour,
	models.IntervalWeekly:    7 * 24 * time.Hour,
	models.IntervalMonthly:   30 * 24 * time.Hour,
	models.IntervalQuarterly: 90 * 24 * time.Hour,
	models.IntervalYearly:    365 * 24 * time.Hour,
}

type SavingsService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Helper       *HelperService
	Wallets      *WalletService
	Transactions *TransactionService
	Investments  *InvestmentService
}

func NewSavingsService(db *gorm.DB, cfg *config.Config, log *zap.Logger, helper *HelperService, wallets *WalletService,
	transactions *TransactionService, investments *InvestmentService) *SavingsService {
	return &SavingsService{
		DB:           db,
		Config:       cfg,
		Log:          log,
		Helper:       helper,
		Wallets:      wallets,
		Transactions: transactions,
		Investments:  investments,
	}
}

type CreateGoalDTO struct {
	UserID                 uint                   `json:"-"`
	GoalName               string                 `json:"goal_name" binding:"required,min=3,max=64"`
	GoalDescription        string                 `json:"goal_description"`
	GoalAmount             decimal.Decimal        `json:"goal_amount" binding:"required,gt=0,money"`
	AmountToSaveAtInterval decimal.Decimal        `json:"amount_to_save_at_interval"`
	FundSource             models.FundSource      `json:"fund_source" binding:"required"`
	Interval               models.SavingsInterval `json:"interval" binding:"required"`
	PaymentMode            models.PaymentMode     `json:"payment_mode"`
	StartDate              time.Time              `json:"start_date" binding:"required"`
	EndDate                time.Time              `json:"end_date" binding:"required"`
}

// Cycles is the number of whole intervals between start and end.
func Cycles(start, end time.Time, interval models.SavingsInterval) int {
	length, ok := intervalLength[interval]
	if !ok || !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / length)
}

func (s *SavingsService) CreateGoal(ctx context.Context, dto CreateGoalDTO) (*models.GoalSavingsPlan, error) {
	if !dto.GoalAmount.IsPositive() {
		return nil, validationError("goal amount must be greater than zero")
	}
	if err := payableSource(dto.FundSource); err != nil {
		return nil, err
	}
	if !dto.Interval.Valid() {
		return nil, validationError(fmt.Sprintf("invalid interval %q", dto.Interval))
	}
	if dto.PaymentMode == "" {
		dto.PaymentMode = models.PaymentModeManual
	}
	if dto.PaymentMode != models.PaymentModeManual && dto.PaymentMode != models.PaymentModeAuto {
		return nil, validationError(fmt.Sprintf("invalid payment mode %q", dto.PaymentMode))
	}
	if dto.StartDate.Before(time.Now().Truncate(24 * time.Hour)) {
		return nil, validationError("Start date must be in the future")
	}
	if !dto.EndDate.After(dto.StartDate) {
		return nil, validationError("End date must be greater than start date")
	}
	if dto.EndDate.Sub(dto.StartDate) < 7*24*time.Hour {
		return nil, validationError("End date must be at least 7 days from start date")
	}
	if dto.EndDate.Sub(dto.StartDate) <= 2*intervalLength[dto.Interval] {
		return nil, validationError("The start date and end date must be at least two cycles of interval.")
	}

	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	if err := requirePaidMember(user); err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, validationError("You cannot create a savings plan as you do not have a wallet.")
	}

	cycles := Cycles(dto.StartDate, dto.EndDate, dto.Interval)
	perInterval := dto.AmountToSaveAtInterval.Round(2)
	if perInterval.IsZero() {
		perInterval = dto.GoalAmount.Div(decimal.NewFromInt(int64(cycles))).RoundUp(2)
	}
	if perInterval.GreaterThan(dto.GoalAmount) {
		return nil, validationError("Amount to save at interval must be less than goal amount")
	}

	plan := models.GoalSavingsPlan{
		UserID:                 user.ID,
		WalletID:               wallet.ID,
		GoalName:               strings.TrimSpace(dto.GoalName),
		GoalDescription:        dto.GoalDescription,
		GoalAmount:             dto.GoalAmount.Round(2),
		FundSource:             dto.FundSource,
		Interval:               dto.Interval,
		PaymentMode:            dto.PaymentMode,
		StartDate:              dto.StartDate,
		EndDate:                dto.EndDate,
		Cycles:                 cycles,
		AmountToSaveAtInterval: perInterval,
		IsActive:               true,
	}
	if err := s.DB.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("create goal plan: %w", err)
	}
	plan.PaymentReferences = []string{}
	return &plan, nil
}

type FundSavingsDTO struct {
	UserID     uint              `json:"-"`
	PlanUID    string            `json:"-"`
	Amount     decimal.Decimal   `json:"amount" binding:"required,gt=0,money"`
	FundSource models.FundSource `json:"fund_source" binding:"required"`
}

// FundGoal adds money to a goal plan. The checks mirror what the funding
// adapter enforces again when the transaction is applied.
func (s *SavingsService) FundGoal(ctx context.Context, dto FundSavingsDTO) (*PaymentOutcome, error) {
	if !dto.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	if err := payableSource(dto.FundSource); err != nil {
		return nil, err
	}
	var plan models.GoalSavingsPlan
	err := s.DB.WithContext(ctx).Where("uid = ?", dto.PlanUID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("The savings plan you are trying to fund does not exist.", ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case plan.PaymentMode == models.PaymentModeAuto:
		return nil, validationError("You cannot fund an auto savings plan.")
	case plan.UserID != dto.UserID:
		return nil, forbiddenError("You are not authorized to fund this savings plan.")
	case plan.IsCompleted:
		return nil, validationError("You cannot fund a completed savings plan.")
	case plan.IsWithdrawn:
		return nil, validationError("You cannot fund a withdrawn savings plan.")
	case plan.AmountSaved.GreaterThanOrEqual(plan.GoalAmount):
		return nil, validationError("You have already saved the required amount for this savings plan.")
	case plan.AmountSaved.Add(dto.Amount).GreaterThan(plan.GoalAmount):
		return nil, validationError("You cannot add more than the required amount to this savings plan.")
	}

	return s.fund(ctx, dto, plan.UID, plan.WalletID, models.TxSavingsAddFunds, "Fund Savings Plan - "+plan.GoalName)
}

type CreateLockedDTO struct {
	UserID   uint   `json:"-"`
	AssetUID string `json:"asset_uid" binding:"required"`
	LockName string `json:"lock_name"`
	Units    int64  `json:"units"`
}

// CreateLocked opens a plan that saves towards units of an asset.
func (s *SavingsService) CreateLocked(ctx context.Context, dto CreateLockedDTO) (*models.LockedSavingsPlan, error) {
	if dto.Units == 0 {
		dto.Units = 1
	}
	if dto.Units < 0 {
		return nil, validationError("units must be greater than zero")
	}
	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	if err := requirePaidMember(user); err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, validationError("You cannot create a savings plan as you do not have a wallet.")
	}
	asset, err := s.Investments.GetAsset(ctx, dto.AssetUID)
	if err != nil {
		return nil, notFoundError("The asset you are trying to lock funds for does not exist.", ErrEntityNotFound)
	}
	if dto.Units > asset.AvailableUnits {
		return nil, validationError(fmt.Sprintf("Only %d units of this asset are available", asset.AvailableUnits))
	}
	name := strings.TrimSpace(dto.LockName)
	if name == "" {
		name = asset.AssetName
	}

	plan := models.LockedSavingsPlan{
		UserID:       user.ID,
		WalletID:     wallet.ID,
		AssetID:      asset.ID,
		LockName:     name,
		Units:        dto.Units,
		TargetAmount: asset.PricePerUnit().Mul(decimal.NewFromInt(dto.Units)),
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("create locked plan: %w", err)
	}
	plan.Asset = asset
	plan.PaymentReferences = []string{}
	return &plan, nil
}

func (s *SavingsService) FundLocked(ctx context.Context, dto FundSavingsDTO) (*PaymentOutcome, error) {
	if !dto.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	if err := payableSource(dto.FundSource); err != nil {
		return nil, err
	}
	var plan models.LockedSavingsPlan
	err := s.DB.WithContext(ctx).Where("uid = ?", dto.PlanUID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("The savings plan you are trying to fund does not exist.", ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case plan.UserID != dto.UserID:
		return nil, forbiddenError("You are not authorized to fund this savings plan.")
	case plan.ReadyForInvestment:
		return nil, validationError("You cannot fund a completed savings plan.")
	case plan.Invested:
		return nil, validationError("You cannot fund an already invested savings plan.")
	case plan.IsWithdrawn:
		return nil, validationError("You cannot fund a withdrawn savings plan.")
	case plan.AmountSaved.GreaterThanOrEqual(plan.TargetAmount):
		return nil, validationError("You have already saved the required amount for this savings plan.")
	case plan.AmountSaved.Add(dto.Amount).GreaterThan(plan.TargetAmount):
		return nil, validationError("You cannot add more than the required amount to this savings plan.")
	}

	return s.fund(ctx, dto, plan.UID, plan.WalletID, models.TxLockedSavingsAddFunds, "Fund Locked Savings Plan - "+plan.LockName)
}

func (s *SavingsService) fund(ctx context.Context, dto FundSavingsDTO, planUID string, walletID uint, typ models.TransactionType, description string) (*PaymentOutcome, error) {
	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.Get(s.DB.WithContext(ctx), walletID)
	if err != nil {
		return nil, err
	}
	if dto.FundSource == models.FundSourceWallet && wallet.Balance.LessThan(dto.Amount) {
		return nil, ErrInsufficientFunds
	}

	trx, err := s.Transactions.Create(s.DB.WithContext(ctx), CreateTransactionDTO{
		Initiator:   user.ID,
		WalletID:    wallet.ID,
		Amount:      dto.Amount,
		Currency:    wallet.Currency,
		Direction:   models.DirectionOutgoing,
		Type:        typ,
		FundSource:  dto.FundSource,
		Description: description,
		EntityUID:   planUID,
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("savings funding started", zap.String("reference", trx.Reference), zap.String("plan", planUID))
	return s.Transactions.Settle(ctx, trx, customerOf(user), PaymentRedirectPath, description)
}

// ListGoals returns the user's goal plans with the references applied to each.
func (s *SavingsService) ListGoals(ctx context.Context, userID uint, completedOnly bool, offset, limit int) ([]models.GoalSavingsPlan, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.GoalSavingsPlan{}).Where("user_id = ?", userID)
	if completedOnly {
		query = query.Where("is_completed = ?", true)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var plans []models.GoalSavingsPlan
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&plans).Error; err != nil {
		return nil, 0, err
	}
	for i := range plans {
		refs, err := s.Helper.AppliedReferences(s.DB.WithContext(ctx), models.EntityGoalSavingsPlan, plans[i].ID)
		if err != nil {
			return nil, 0, err
		}
		plans[i].PaymentReferences = refs
	}
	return plans, total, nil
}

func (s *SavingsService) ListLocked(ctx context.Context, userID uint, readyOnly bool, offset, limit int) ([]models.LockedSavingsPlan, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.LockedSavingsPlan{}).Where("user_id = ? AND is_active = ?", userID, true)
	if readyOnly {
		query = query.Where("ready_for_investment = ?", true)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var plans []models.LockedSavingsPlan
	if err := query.Preload("Asset").Order("id DESC").Offset(offset).Limit(limit).Find(&plans).Error; err != nil {
		return nil, 0, err
	}
	for i := range plans {
		refs, err := s.Helper.AppliedReferences(s.DB.WithContext(ctx), models.EntityLockedSavingsPlan, plans[i].ID)
		if err != nil {
			return nil, 0, err
		}
		plans[i].PaymentReferences = refs
	}
	return plans, total, nil
}

type SavingsStats struct {
	Balance              decimal.Decimal `json:"balance"`
	SavingsCount         int             `json:"savings_count"`
	GoalSavingsBalance   decimal.Decimal `json:"goal_savings_balance"`
	LockedSavingsBalance decimal.Decimal `json:"locked_savings_balance"`
	TotalSaved           decimal.Decimal `json:"total_saved"`
	TotalWithdrawn       decimal.Decimal `json:"total_withdrawn"`
}

// Stats sums the open plans of a user.
func (s *SavingsService) Stats(ctx context.Context, userID uint) (*SavingsStats, error) {
	wallet, err := s.Wallets.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var goals []models.GoalSavingsPlan
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND is_active = ? AND is_completed = ?", userID, true, false).Find(&goals).Error; err != nil {
		return nil, err
	}
	var locked []models.LockedSavingsPlan
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND is_active = ? AND invested = ?", userID, true, false).Find(&locked).Error; err != nil {
		return nil, err
	}

	stats := &SavingsStats{
		SavingsCount:         len(goals) + len(locked),
		GoalSavingsBalance:   decimal.Zero,
		LockedSavingsBalance: decimal.Zero,
		TotalSaved:           wallet.TotalSaved,
		TotalWithdrawn:       wallet.TotalSavedWithdrawn,
	}
	for _, g := range goals {
		stats.GoalSavingsBalance = stats.GoalSavingsBalance.Add(g.AmountSaved)
	}
	for _, l := range locked {
		stats.LockedSavingsBalance = stats.LockedSavingsBalance.Add(l.AmountSaved)
	}
	stats.Balance = stats.GoalSavingsBalance.Add(stats.LockedSavingsBalance)
	return stats, nil
}
