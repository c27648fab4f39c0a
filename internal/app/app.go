// Package app wires the ledger services shared by the API and worker processes.
package app

import (
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/events"
	"ledger-service/internal/lock"
	"ledger-service/internal/services"
	"ledger-service/internal/tasks"
)

type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Config    *config.Config
	Log       *zap.Logger
	Publisher events.Publisher
	Enqueuer  tasks.Enqueuer
	Locker    lock.Locker
}

type Services struct {
	Gateway        *services.FlutterwaveService
	Helper         *services.HelperService
	Wallets        *services.WalletService
	Transactions   *services.TransactionService
	Reconciliation *services.ReconciliationService
	Users          *services.UserService
	Membership     *services.MembershipService
	Deposits       *services.DepositService
	Withdrawals    *services.WithdrawalService
	Investments    *services.InvestmentService
	Savings        *services.SavingsService
	Bonus          *services.BonusService
	Banks          *services.BankService
	Sweep          *services.SweepService
}

func New(d Deps) *Services {
	db, cfg, log := d.DB, d.Config, d.Log

	s := &Services{Gateway: services.NewFlutterwaveService(&cfg.Gateway, log)}
	s.Helper = services.NewHelperService(db, cfg, log)
	s.Wallets = services.NewWalletService(db, cfg)
	s.Transactions = services.NewTransactionService(db, cfg, log, s.Helper, s.Wallets,
		services.NewFundingAdapters(s.Helper, s.Wallets), s.Gateway, d.Publisher, d.Enqueuer)
	s.Reconciliation = services.NewReconciliationService(db, cfg, log, s.Helper, s.Transactions, s.Gateway, d.Locker)
	s.Users = services.NewUserService(db, s.Wallets, log)
	s.Membership = services.NewMembershipService(db, cfg, log, s.Wallets, s.Transactions)
	s.Deposits = services.NewDepositService(db, cfg, log, s.Wallets, s.Transactions)
	s.Withdrawals = services.NewWithdrawalService(db, cfg, log, s.Wallets, s.Transactions, s.Gateway)
	s.Investments = services.NewInvestmentService(db, cfg, log, s.Wallets, s.Transactions)
	s.Savings = services.NewSavingsService(db, cfg, log, s.Helper, s.Wallets, s.Transactions, s.Investments)
	s.Bonus = services.NewBonusService(db, cfg, log, s.Helper, s.Wallets, s.Transactions)
	s.Banks = services.NewBankService(db, d.Redis, cfg, log, s.Wallets, s.Gateway)
	s.Sweep = services.NewSweepService(db, cfg, log, d.Enqueuer, s.Banks)
	return s
}

func NewRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func AsynqRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers are configured.
func NewPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	brokers := cfg.Kafka.BrokerList()
	if len(brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, ledger events are disabled")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(brokers, cfg.Kafka.Topic, log)
}
