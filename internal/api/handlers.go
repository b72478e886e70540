package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/blockchain"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *Handler) claim(c *gin.Context) {
	now, err := h.clock.Now()
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.engine.Claim(c.Request.Context(), c.GetHeader(AccountHeader), now)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.counter.Count("claimed")
	c.JSON(http.StatusOK, gin.H{
		"account":          result.Account,
		"amount_dispensed": result.AmountDispensed,
		"total_claimed":    result.TotalClaimed,
		"claimed_at":       result.ClaimedAt,
		"denom":            h.denom,
	})
}

func (h *Handler) getAccount(c *gin.Context) {
	now, err := h.clock.Now()
	if err != nil {
		h.fail(c, err)
		return
	}

	status, err := h.engine.AccountStatus(c.Request.Context(), c.Param("address"), now)
	if err != nil {
		h.fail(c, err)
		return
	}

	var lastClaimAt *time.Time
	if status.Claims > 0 {
		lastClaimAt = &status.LastClaimAt
	}
	reason := ""
	if status.Reason != nil {
		_, reason = classify(status.Reason)
	}

	c.JSON(http.StatusOK, gin.H{
		"address":                status.Account,
		"balance":                status.Balance,
		"total_claimed":          status.TotalClaimed,
		"claims":                 status.Claims,
		"last_claim_at":          lastClaimAt,
		"remaining_allowance":    status.RemainingAllowance,
		"eligible":               status.Eligible,
		"reason":                 reason,
		"seconds_until_eligible": seconds(status.TimeUntilEligible),
		"denom":                  h.denom,
	})
}

func (h *Handler) getClaims(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit", "code": "invalid_request"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	events, err := h.engine.History(c.Request.Context(), c.Param("address"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	claims := make([]gin.H, 0, len(events))
	for _, event := range events {
		claims = append(claims, gin.H{
			"id":            event.ID,
			"amount":        event.Amount,
			"total_claimed": event.TotalClaimed,
			"claimed_at":    event.ClaimedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"address": c.Param("address"),
		"claims":  claims,
	})
}

func (h *Handler) getFaucet(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paused":           status.Paused,
		"denom":            h.denom,
		"claim_amount":     status.ClaimAmount,
		"cooldown_seconds": seconds(status.Cooldown),
		"lifetime_limit":   status.LifetimeLimit,
		"owner":            status.Owner,
		"reserve_address":  status.Reserve,
		"reserve_balance":  status.ReserveBalance,
		"outcomes":         h.counter.Snapshot(),
	})
}

func (h *Handler) pause(c *gin.Context) {
	if err := h.engine.Pause(c.Request.Context(), c.GetHeader(AccountHeader)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *Handler) unpause(c *gin.Context) {
	if err := h.engine.Unpause(c.Request.Context(), c.GetHeader(AccountHeader)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

type withdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": "invalid_request"})
		return
	}
	amount, err := parseAmount(req.Amount, h.denom)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.engine.WithdrawReserve(ctx, c.GetHeader(AccountHeader), amount); err != nil {
		h.fail(c, err)
		return
	}
	reserve, err := h.engine.BalanceOf(ctx, h.engine.Config().Reserve)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"withdrawn":       amount,
		"reserve_balance": reserve,
		"denom":           h.denom,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	h.counter.Count(code)

	var cooldown *faucet.CooldownError
	if errors.As(err, &cooldown) {
		c.Header("Retry-After", strconv.FormatInt(seconds(cooldown.Remaining), 10))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, faucet.ErrFaucetPaused):
		return http.StatusServiceUnavailable, "faucet_paused"
	case errors.Is(err, faucet.ErrCooldownActive):
		return http.StatusTooManyRequests, "cooldown_active"
	case errors.Is(err, faucet.ErrLifetimeLimitExceeded):
		return http.StatusConflict, "lifetime_limit_exceeded"
	case errors.Is(err, faucet.ErrInsufficientReserve):
		return http.StatusServiceUnavailable, "insufficient_reserve"
	case errors.Is(err, faucet.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, faucet.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, faucet.ErrInvalidAccount), errors.Is(err, faucet.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, blockchain.ErrNoBlock):
		return http.StatusServiceUnavailable, "clock_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// seconds rounds up so a client never retries a moment too early.
func seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
