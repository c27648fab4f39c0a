package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-service/internal/models"
)

func lookupByUID(tx *gorm.DB, uid string, dest interface{}) error {
	if uid == "" {
		return fmt.Errorf("%w: transaction carries no entity", ErrEntityNotFound)
	}
	err := tx.Where("uid = ?", uid).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, uid)
	}
	return err
}

func guard(helper *HelperService, tx *gorm.DB, entity string, id uint, reference string) error {
	ok, err := helper.MarkApplied(tx, entity, id, reference)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyApplied
	}
	return nil
}

// MembershipFunding activates the wallet and records the paid membership.
type MembershipFunding struct {
	Helper  *HelperService
	Wallets *WalletService
}

func (f *MembershipFunding) ApplyFunding(tx *gorm.DB, trx *models.Transaction) error {
	if err := guard(f.Helper, tx, models.EntityMembership, trx.Initiator, trx.Reference); err != nil {
		return err
	}
	// a second fee from another reference must not be absorbed silently
	res := tx.Model(&models.User{}).
		Where("id = ? AND has_paid_membership_fee = ?", trx.Initiator, false).
		Update("has_paid_membership_fee", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d has already paid the membership fee", ErrFundingRejected, trx.Initiator)
	}
	return f.Wallets.Activate(tx, trx.WalletID)
}

// InvestmentFunding activates the investment and takes its units off the asset.
type InvestmentFunding struct {
	Helper  *HelperService
	Wallets *WalletService
}

func (f *InvestmentFunding) ApplyFunding(tx *gorm.DB, trx *models.Transaction) error {
	var inv models.Investment
	if err := lookupByUID(tx, trx.EntityUID, &inv); err != nil {
		return err
	}
	if err := guard(f.Helper, tx, models.EntityInvestment, inv.ID, trx.Reference); err != nil {
		return err
	}

	res := tx.Model(&models.InvestibleAsset{}).
		Where("id = ? AND available_units >= ?", inv.AssetID, inv.Units).
		UpdateColumn("available_units", gorm.Expr("available_units - ?", inv.Units))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: asset %d has fewer than %d units left", ErrFundingRejected, inv.AssetID, inv.Units)
	}

	if err := tx.Model(&models.Investment{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"is_active": true,
		"reference": trx.Reference,
	}).Error; err != nil {
		return err
	}

	res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.AssetInvestor{AssetID: inv.AssetID, UserID: inv.UserID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		if err := tx.Model(&models.InvestibleAsset{}).Where("id = ?", inv.AssetID).
			UpdateColumn("investor_count", gorm.Expr("investor_count + 1")).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&models.InvestibleAsset{}).
		Where("id = ? AND available_units = 0", inv.AssetID).
		UpdateColumn("sold_out", true).Error; err != nil {
		return err
	}
	return f.Wallets.Bump(tx, trx.WalletID, trx.Amount, CounterInvested)
}

// GoalSavingsFunding adds to a goal plan's saved total, never beyond the goal.
type GoalSavingsFunding struct {
	Helper  *HelperService
	Wallets *WalletService
}

func (f *GoalSavingsFunding) ApplyFunding(tx *gorm.DB, trx *models.Transaction) error {
	var plan models.GoalSavingsPlan
	if err := lookupByUID(tx, trx.EntityUID, &plan); err != nil {
		return err
	}
	if err := guard(f.Helper, tx, models.EntityGoalSavingsPlan, plan.ID, trx.Reference); err != nil {
		return err
	}

	res := tx.Model(&models.GoalSavingsPlan{}).
		Where("id = ? AND amount_saved + ? <= goal_amount", plan.ID, trx.Amount).
		UpdateColumn("amount_saved", gorm.Expr("amount_saved + ?", trx.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: plan %s would exceed its goal", ErrFundingRejected, plan.UID)
	}

	if err := tx.Model(&models.GoalSavingsPlan{}).
		Where("id = ? AND is_completed = ? AND amount_saved >= goal_amount", plan.ID, false).
		UpdateColumn("is_completed", true).Error; err != nil {
		return err
	}
	return f.Wallets.Bump(tx, trx.WalletID, trx.Amount, CounterSaved)
}

// LockedSavingsFunding is the locked plan counterpart of GoalSavingsFunding.
type LockedSavingsFunding struct {
	Helper  *HelperService
	Wallets *WalletService
}

func (f *LockedSavingsFunding) ApplyFunding(tx *gorm.DB, trx *models.Transaction) error {
	var plan models.LockedSavingsPlan
	if err := lookupByUID(tx, trx.EntityUID, &plan); err != nil {
		return err
	}
	if err := guard(f.Helper, tx, models.EntityLockedSavingsPlan, plan.ID, trx.Reference); err != nil {
		return err
	}

	res := tx.Model(&models.LockedSavingsPlan{}).
		Where("id = ? AND amount_saved + ? <= target_amount", plan.ID, trx.Amount).
		UpdateColumn("amount_saved", gorm.Expr("amount_saved + ?", trx.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: locked plan %s would exceed its target", ErrFundingRejected, plan.UID)
	}

	if err := tx.Model(&models.LockedSavingsPlan{}).
		Where("id = ? AND ready_for_investment = ? AND amount_saved >= target_amount", plan.ID, false).
		UpdateColumn("ready_for_investment", true).Error; err != nil {
		return err
	}
	return f.Wallets.Bump(tx, trx.WalletID, trx.Amount, CounterSaved)
}

// NewFundingAdapters wires the standard adapters.
func NewFundingAdapters(helper *HelperService, wallets *WalletService) FundingAdapters {
	return FundingAdapters{
		Membership:    &MembershipFunding{Helper: helper, Wallets: wallets},
		Investment:    &InvestmentFunding{Helper: helper, Wallets: wallets},
		GoalSavings:   &GoalSavingsFunding{Helper: helper, Wallets: wallets},
		LockedSavings: &LockedSavingsFunding{Helper: helper, Wallets: wallets},
	}
}
