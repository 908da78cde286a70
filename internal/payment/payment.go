package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"music-shop/internal/logging"
	"music-shop/internal/mykafka"
	"music-shop/internal/service/token"
	"music-shop/internal/session"
)

const (
	StateNone      = "none"
	StateInitiated = "initiated"
)

// stateTTL bounds how long an abandoned checkout survives in the session store.
const stateTTL = 24 * time.Hour

// Line is one entry of the session-held cart snapshot taken at initiate time.
type Line struct {
	ProductID uint            `json:"product_id"`
	Product   string          `json:"product"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint            `json:"quantity"`
}

// State is the per-user payment state machine value. An absent session key
// means StateNone.
type State struct {
	Status string          `json:"status"`
	Total  decimal.Decimal `json:"total"`
	Items  []Line          `json:"items"`
}

type Handler struct {
	DB       *gorm.DB
	Sessions session.Store
	Producer mykafka.Publisher
}

func stateKey(userID uint) string {
	return fmt.Sprintf("payment:%d", userID)
}

func (h *Handler) load(ctx context.Context, userID uint) (*State, error) {
	raw, err := h.Sessions.Get(ctx, stateKey(userID))
	if errors.Is(err, session.ErrNotFound) {
		return &State{Status: StateNone, Total: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (h *Handler) save(ctx context.Context, userID uint, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return h.Sessions.Set(ctx, stateKey(userID), raw, stateTTL)
}

func (h *Handler) clear(ctx context.Context, userID uint) error {
	return h.Sessions.Delete(ctx, stateKey(userID))
}

func (h *Handler) publish(c echo.Context, userID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "payment_events", fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// snapshot copies the persisted cart into session lines. An empty or missing
// cart yields an empty snapshot, which is not an error here.
func (h *Handler) snapshot(userID uint) ([]Line, error) {
	lines := []Line{}
	err := h.DB.Table("cart_items").
		Select("cart_items.product_id AS product_id, products.name AS product, products.price AS price, cart_items.quantity AS quantity").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Order("cart_items.id ASC").
		Scan(&lines).Error
	return lines, err
}

// Initiate snapshots the cart, stores the total and moves to initiated. It
// never fails on an empty cart; the total simply becomes zero.
func (h *Handler) Initiate(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	ctx := c.Request().Context()

	lines, err := h.snapshot(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	st := &State{Status: StateInitiated, Total: total, Items: lines}
	if err := h.save(ctx, userID, st); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	h.publish(c, userID, map[string]any{
		"type":    "payment_initiated",
		"user_id": userID,
		"total":   total,
	})

	return c.Redirect(http.StatusFound, "/payment/confirm")
}

// Confirm is only valid from initiated. It clears the session state and sends
// the user to the order history. Order creation stays a separate operation.
func (h *Handler) Confirm(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	ctx := c.Request().Context()

	st, err := h.load(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	if st.Status != StateInitiated {
		logging.FromContext(ctx).Warn("invalid payment confirmation", "user_id", userID, "status", st.Status)
		return c.Redirect(http.StatusFound, "/cart?error=invalid_confirmation")
	}

	if err := h.clear(ctx, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	h.publish(c, userID, map[string]any{
		"type":    "payment_confirmed",
		"user_id": userID,
		"total":   st.Total,
	})

	return c.Redirect(http.StatusFound, "/order/history")
}

// Cancel mirrors Confirm but returns to the cart with a warning.
func (h *Handler) Cancel(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	ctx := c.Request().Context()

	st, err := h.load(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}
	if st.Status != StateInitiated {
		logging.FromContext(ctx).Warn("invalid payment cancellation", "user_id", userID, "status", st.Status)
		return c.Redirect(http.StatusFound, "/cart?error=invalid_cancellation")
	}

	if err := h.clear(ctx, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session error")
	}

	h.publish(c, userID, map[string]any{
		"type":    "payment_cancelled",
		"user_id": userID,
	})

	return c.Redirect(http.StatusFound, "/cart?warning=payment_cancelled")
}
