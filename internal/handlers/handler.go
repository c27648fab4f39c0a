package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ledger-service/internal/config"
	"ledger-service/internal/services"
)

// WebhookParser authenticates and decodes gateway webhooks.
type WebhookParser interface {
	ParseWebhook(signature string, body []byte) (services.CallbackDTO, bool, error)
}

type Handler struct {
	Config         *config.Config
	Log            *zap.Logger
	Users          *services.UserService
	Wallets        *services.WalletService
	Transactions   *services.TransactionService
	Reconciliation *services.ReconciliationService
	Membership     *services.MembershipService
	Deposits       *services.DepositService
	Withdrawals    *services.WithdrawalService
	Investments    *services.InvestmentService
	Savings        *services.SavingsService
	Bonus          *services.BonusService
	Banks          *services.BankService
	Webhooks       WebhookParser
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	RegisterValidators()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET(services.TopUpRedirectPath, h.PaymentCallback("top_up_callback"))
	r.GET(services.PaymentRedirectPath, h.PaymentCallback("payment_callback"))
	r.GET(services.WithdrawalCallbackPath, h.PaymentCallback("withdrawal_callback"))
	r.POST(services.WithdrawalCallbackPath, h.TransferCallback)
	r.POST("/webhooks/flutterwave", h.FlutterwaveWebhook)
	r.GET("/banks", h.ListBanks)

	auth := r.Group("/", Auth(h.Config.Auth))
	{
		auth.GET("/wallet", h.GetWallet)
		auth.GET("/wallet/transactions", h.ListTransactions)
		auth.GET("/wallet/transactions/:reference", h.GetTransaction)
		auth.POST("/wallet/top-up", h.TopUp)
		auth.POST("/wallet/withdraw", h.Withdraw)
		auth.GET("/wallet/withdrawals", h.ListWithdrawals)

		auth.POST("/membership/pay", h.PayMembership)

		auth.GET("/investments/assets", h.ListAssets)
		auth.GET("/investments/assets/:uid", h.GetAsset)
		auth.POST("/investments", h.Invest)
		auth.GET("/investments", h.ListInvestments)

		auth.POST("/savings/goals", h.CreateGoal)
		auth.GET("/savings/goals", h.ListGoals)
		auth.POST("/savings/goals/:uid/fund", h.FundGoal)
		auth.POST("/savings/locked", h.CreateLocked)
		auth.GET("/savings/locked", h.ListLocked)
		auth.POST("/savings/locked/:uid/fund", h.FundLocked)
		auth.GET("/savings/stats", h.SavingsStats)

		auth.GET("/referrals/profile", h.ReferralProfile)
		auth.GET("/referrals/referrals", h.ListReferrals)
		auth.POST("/referrals/withdraw", h.WithdrawReferralBonus)
		auth.POST("/affiliates", h.BecomeAffiliate)
		auth.GET("/affiliates/profile", h.AffiliateProfile)
		auth.POST("/affiliates/codes", h.AddAffiliateCode)
		auth.GET("/affiliates/referrals", h.ListAffiliateReferrals)
		auth.POST("/affiliates/withdraw", h.WithdrawAffiliateBonus)

		auth.POST("/bank-accounts", h.LinkBankAccount)
		auth.GET("/bank-accounts", h.ListBankAccounts)
		auth.DELETE("/bank-accounts/:id", h.DeactivateBankAccount)
	}

	admin := r.Group("/", Auth(h.Config.Auth), h.RequireAdmin())
	{
		admin.POST("/investments/assets", h.CreateAsset)
		admin.POST("/internal/users", h.RegisterUser)
		admin.PATCH("/internal/users/:id/kyc", h.SetKYCStatus)
	}
}
