package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/models"
)

func TestMembershipPaymentInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, _, err := env.users.Register(ctx, RegisterUserDTO{Email: "inflight@example.com"})
	require.NoError(t, err)

	first, err := env.membership.Pay(ctx, PayMembershipDTO{UserID: user.ID, FundSource: models.FundSourceCard})
	require.NoError(t, err)
	assert.NotEmpty(t, first.Link)

	_, err = env.membership.Pay(ctx, PayMembershipDTO{UserID: user.ID, FundSource: models.FundSourceCard})
	assert.ErrorIs(t, err, ErrValidation)

	// an abandoned checkout stops blocking once it is older than the pending TTL
	env.backdate(t, first.Transaction, env.cfg.Ledger.PendingTTL*2)
	_, err = env.membership.Pay(ctx, PayMembershipDTO{UserID: user.ID, FundSource: models.FundSourceCard})
	assert.NoError(t, err)
}

func TestSecondMembershipFeeIsNotAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, wallet, err := env.users.Register(ctx, RegisterUserDTO{Email: "twice@example.com"})
	require.NoError(t, err)

	var refs []string
	for i := 0; i < 2; i++ {
		trx, err := env.txs.Create(env.db, CreateTransactionDTO{
			Initiator: user.ID, WalletID: wallet.ID, Amount: env.cfg.Ledger.MembershipFee,
			Direction: models.DirectionOutgoing, Type: models.TxMembershipFee, FundSource: models.FundSourceCard,
		})
		require.NoError(t, err)
		refs = append(refs, trx.Reference)
	}

	id := env.gw.pay(refs[0], "5000", VerificationSuccessful)
	got, err := env.recon.HandleCallback(ctx, CallbackDTO{Status: "successful", TxRef: refs[0], TransactionID: id}, "webhook")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccessful, got.Status)

	id = env.gw.pay(refs[1], "5000", VerificationSuccessful)
	got, err = env.recon.HandleCallback(ctx, CallbackDTO{Status: "successful", TxRef: refs[1], TransactionID: id}, "webhook")
	require.ErrorIs(t, err, ErrFundingRejected)
	kind, _ := Classify(err)
	assert.Equal(t, KindConsistency, kind)
	assert.Equal(t, models.TransactionFailed, got.Status)

	reloaded, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.HasPaidMembershipFee)
	assert.True(t, env.wallet(t, wallet.ID).IsActive)
}

func TestSecondWalletMembershipFeeIsNotDebited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, wallet, err := env.users.Register(ctx, RegisterUserDTO{Email: "wallet-twice@example.com"})
	require.NoError(t, err)
	_, err = env.wallets.Credit(env.db, wallet.ID, dec("12000"), CounterDeposited)
	require.NoError(t, err)

	var pending []*models.Transaction
	for i := 0; i < 2; i++ {
		trx, err := env.txs.Create(env.db, CreateTransactionDTO{
			Initiator: user.ID, WalletID: wallet.ID, Amount: env.cfg.Ledger.MembershipFee,
			Direction: models.DirectionOutgoing, Type: models.TxMembershipFee, FundSource: models.FundSourceWallet,
		})
		require.NoError(t, err)
		pending = append(pending, trx)
	}

	require.NoError(t, env.txs.SettleFromWallet(ctx, pending[0]))
	err = env.txs.SettleFromWallet(ctx, pending[1])
	assert.ErrorIs(t, err, ErrFundingRejected)

	assert.Equal(t, models.TransactionFailed, env.transaction(t, pending[1].Reference).Status)
	requireAmount(t, "7000", env.wallet(t, wallet.ID).Balance)
}
