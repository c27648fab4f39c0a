package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

// Connect opens the MySQL connection pool described by cfg.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}

	db, err := gorm.Open(mysql.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connection established", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))
	return db, nil
}

// Models lists every table owned by the ledger.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.AppliedReference{},
		&models.Bank{},
		&models.BankAccount{},
		&models.Withdrawal{},
		&models.CallbackLog{},
		&models.InvestibleAsset{},
		&models.Investment{},
		&models.AssetInvestor{},
		&models.GoalSavingsPlan{},
		&models.LockedSavingsPlan{},
		&models.ReferralProfile{},
		&models.AffiliateProfile{},
		&models.AffiliateCode{},
		&models.Referral{},
		&models.AffiliateReferral{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
