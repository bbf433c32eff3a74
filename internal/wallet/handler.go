package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/abhisamaya/therapy-bro/internal/api"
	"github.com/abhisamaya/therapy-bro/internal/auth"
	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/metrics"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB, initialBalance decimal.Decimal, currency string) *Handler {
	return &Handler{
		repo: NewRepository(db, initialBalance, currency),
	}
}

// GetBalance godoc
// @Summary      Get wallet balance
// @Description  Returns the caller's wallet, creating it with the signup bonus on first access.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BalanceResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /api/wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	w, err := h.repo.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		logger.Errorf("failed to load wallet for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		Balance:  w.Balance.StringFixed(4),
		Reserved: w.Reserved.StringFixed(4),
		Currency: w.Currency,
	})
}

// CreateWallet godoc
// @Summary      Create wallet
// @Description  Explicitly creates the caller's wallet with the signup bonus; returns the existing one if present.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  CreateWalletResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /api/wallet [post]
func (h *Handler) CreateWallet(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	existing, err := h.repo.FindByUserID(c.Request.Context(), userID)
	if err == nil {
		c.JSON(http.StatusOK, CreateWalletResponse{
			WalletID: existing.ID,
			Balance:  existing.Balance.StringFixed(4),
			Currency: existing.Currency,
		})
		return
	}
	if err != ErrWalletNotFound {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load wallet"})
		return
	}

	w, err := h.repo.CreateWithBonus(c.Request.Context(), userID)
	if err != nil {
		logger.Errorf("failed to create wallet for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create wallet"})
		return
	}

	metrics.RecordWalletCreated()

	c.JSON(http.StatusOK, CreateWalletResponse{
		WalletID: w.ID,
		Balance:  w.Balance.StringFixed(4),
		Currency: w.Currency,
	})
}

// ListTransactions godoc
// @Summary      List ledger transactions
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query  int  false  "Page size (default 50)"
// @Param        offset  query  int  false  "Offset"
// @Success      200  {array}   Transaction
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /api/wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.Errorf("failed to list transactions for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
