package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledger-service/internal/config"
	"ledger-service/internal/database"
	"ledger-service/internal/events"
	"ledger-service/internal/lock"
	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/internal/tasks"
)

// offlineGateway only names itself; any other call panics.
type offlineGateway struct {
	services.Gateway
}

func (offlineGateway) Name() string { return "offline" }

type rpcEnv struct {
	client  *LedgerClient
	conn    *grpc.ClientConn
	users   *services.UserService
	wallets *services.WalletService
	txs     *services.TransactionService
	db      *gorm.DB
}

func newRPCEnv(t *testing.T) *rpcEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	log := zap.NewNop()
	helper := services.NewHelperService(db, cfg, log)
	wallets := services.NewWalletService(db, cfg)
	gw := offlineGateway{}
	txs := services.NewTransactionService(db, cfg, log, helper, wallets,
		services.NewFundingAdapters(helper, wallets), gw, events.NopPublisher{}, &tasks.Recorder{})

	srv := NewGRPCServer(&Server{
		Log:            log,
		Wallets:        wallets,
		Transactions:   txs,
		Reconciliation: services.NewReconciliationService(db, cfg, log, helper, txs, gw, lock.NewLocalLocker()),
	})
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &rpcEnv{
		client:  NewLedgerClient(conn),
		conn:    conn,
		users:   services.NewUserService(db, wallets, log),
		wallets: wallets,
		txs:     txs,
		db:      db,
	}
}

func TestGetWallet(t *testing.T) {
	env := newRPCEnv(t)
	ctx := context.Background()
	user, wallet, err := env.users.Register(ctx, services.RegisterUserDTO{Email: "ada@example.com"})
	require.NoError(t, err)
	_, err = env.wallets.Credit(env.db, wallet.ID, decimal.NewFromInt(1500), services.CounterNone)
	require.NoError(t, err)

	out, err := env.client.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(out.GetFields()["balance"].GetStringValue()).Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "NGN", out.GetFields()["currency"].GetStringValue())

	_, err = env.client.GetWallet(ctx, 999)
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = env.client.call(ctx, "GetWallet", map[string]interface{}{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetTransactionAndReconcile(t *testing.T) {
	env := newRPCEnv(t)
	ctx := context.Background()
	user, wallet, err := env.users.Register(ctx, services.RegisterUserDTO{Email: "ada@example.com"})
	require.NoError(t, err)
	trx, err := env.txs.Create(env.db, services.CreateTransactionDTO{
		Initiator: user.ID, WalletID: wallet.ID, Amount: decimal.NewFromInt(300),
		Direction: models.DirectionIncoming, Type: models.TxTopup, FundSource: models.FundSourceCard,
	})
	require.NoError(t, err)

	out, err := env.client.GetTransaction(ctx, trx.Reference)
	require.NoError(t, err)
	assert.Equal(t, "pending", out.GetFields()["status"].GetStringValue())

	out, err = env.client.Reconcile(ctx, services.CallbackDTO{Status: "cancelled", TxRef: trx.Reference})
	require.NoError(t, err)
	assert.Equal(t, "failed", out.GetFields()["status"].GetStringValue())

	_, err = env.client.Reconcile(ctx, services.CallbackDTO{Status: "successful"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = env.client.GetTransaction(ctx, "SFHMISSING")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealth(t *testing.T) {
	env := newRPCEnv(t)
	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
