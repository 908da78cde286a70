package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"music-shop/internal/logging"
	"music-shop/internal/models"
	"music-shop/internal/mykafka"
	"music-shop/internal/service/token"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
}

type orderLine struct {
	Product  string          `json:"product"`
	Quantity uint            `json:"quantity"`
	Price    decimal.Decimal `json:"-"`
}

type orderView struct {
	OrderID    uint            `json:"order_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []orderLine     `json:"items"`
}

func (h *OrderHandler) publish(c echo.Context, userID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// CreateOrder snapshots the cart into an immutable order and clears the cart,
// all in one transaction.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	order := models.Order{UserID: userID}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		var items []models.CartItem
		if err := tx.Where("cart_id = ?", cart.ID).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
		}

		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create order")
	}

	h.publish(c, userID, map[string]any{
		"type":     "order_created",
		"user_id":  userID,
		"order_id": order.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "order created successfully",
		"order_id": order.ID,
	})
}

func (h *OrderHandler) lines(orderID uint) ([]orderLine, error) {
	lines := []orderLine{}
	err := h.DB.Table("order_items").
		Select("products.name AS product, order_items.quantity AS quantity, products.price AS price").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Order("order_items.id ASC").
		Scan(&lines).Error
	return lines, err
}

func (h *OrderHandler) view(order *models.Order) (*orderView, error) {
	lines, err := h.lines(order.ID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return &orderView{OrderID: order.ID, TotalPrice: total, Items: lines}, nil
}

func (h *OrderHandler) OrderDetail(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	view, err := h.view(&order)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) OrderHistory(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var orders []models.Order
	if err := h.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		view, err := h.view(&orders[i])
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "db error")
		}
		views = append(views, *view)
	}
	return c.JSON(http.StatusOK, views)
}
