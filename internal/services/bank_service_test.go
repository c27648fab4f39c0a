package services

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/models"
)

func TestListBanksRefreshesAndFallsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	banks, err := env.banks.ListBanks(ctx, "ng")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "NG", banks[0].Country)

	var stored int64
	env.db.Model(&models.Bank{}).Count(&stored)
	assert.Equal(t, int64(2), stored)

	// refresh again with a renamed bank: upsert, no duplicates
	env.gw.Banks = []SupportedBank{{Code: "044", Name: "Access Bank Plc"}}
	_, err = env.banks.RefreshBanks(ctx, "")
	require.NoError(t, err)
	env.db.Model(&models.Bank{}).Count(&stored)
	assert.Equal(t, int64(2), stored)

	env.gw.BanksErr = ErrGatewayUnavailable
	banks, err = env.banks.ListBanks(ctx, "")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "Access Bank Plc", banks[0].Name)

	_, err = env.banks.ListBanks(ctx, "GH")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestListBanksUsesRedis(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	env := newTestEnv(t)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	env.banks.Redis = rdb
	ctx := context.Background()
	rdb.Del(ctx, bankCacheKey("NG"))

	_, err := env.banks.ListBanks(ctx, "NG")
	require.NoError(t, err)

	env.gw.BanksErr = ErrGateway
	require.NoError(t, env.db.Where("1 = 1").Delete(&models.Bank{}).Error)
	banks, err := env.banks.ListBanks(ctx, "NG")
	require.NoError(t, err)
	assert.Len(t, banks, 2)
}

func TestLinkBankAccount(t *testing.T) {
	env := newTestEnv(t)
	user, wallet := env.member(t, "0")
	ctx := context.Background()

	account, err := env.banks.LinkBankAccount(ctx, LinkBankAccountDTO{UserID: user.ID, BankCode: "058", AccountNumber: "0123456789"})
	require.NoError(t, err)
	assert.Equal(t, "ADA OBI", account.AccountName)
	assert.Equal(t, "GTBank", account.BankName)
	assert.Equal(t, wallet.ID, account.WalletID)

	again, err := env.banks.LinkBankAccount(ctx, LinkBankAccountDTO{UserID: user.ID, BankCode: "058", AccountNumber: "0123456789"})
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)

	accounts, err := env.banks.ListAccounts(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, env.banks.DeactivateAccount(ctx, user.ID, account.ID))
	accounts, err = env.banks.ListAccounts(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	assert.ErrorIs(t, env.banks.DeactivateAccount(ctx, user.ID+100, account.ID), ErrEntityNotFound)
}

func TestLinkBankAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.member(t, "0")
	ctx := context.Background()

	_, err := env.banks.LinkBankAccount(ctx, LinkBankAccountDTO{UserID: user.ID, BankCode: "058", AccountNumber: "12345"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.banks.LinkBankAccount(ctx, LinkBankAccountDTO{UserID: user.ID, BankCode: "999", AccountNumber: "0123456789"})
	assert.ErrorIs(t, err, ErrValidation)

	env.gw.AccountName = ""
	_, err = env.banks.LinkBankAccount(ctx, LinkBankAccountDTO{UserID: user.ID, BankCode: "058", AccountNumber: "0123456789"})
	require.ErrorIs(t, err, ErrValidation)
	_, msg := Classify(err)
	assert.Equal(t, "We could not verify this bank account", msg)
}
