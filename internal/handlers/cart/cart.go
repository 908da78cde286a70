package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"music-shop/internal/logging"
	"music-shop/internal/models"
	"music-shop/internal/mykafka"
	"music-shop/internal/service/token"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
}

type cartLine struct {
	ID       uint   `json:"id"`
	Product  string `json:"product"`
	Quantity uint   `json:"quantity"`
}

func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// getOrCreateCart lazily creates the single cart of the user.
func getOrCreateCart(db *gorm.DB, userID uint) (*models.Cart, error) {
	var cart models.Cart
	if err := db.Where(models.Cart{UserID: userID}).FirstOrCreate(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (h *CartHandler) findProduct(c echo.Context) (*models.Product, error) {
	id, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return &product, nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	cart, err := getOrCreateCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	lines := []cartLine{}
	if err := h.DB.Table("cart_items").
		Select("cart_items.id AS id, products.name AS product, cart_items.quantity AS quantity").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.cart_id = ?", cart.ID).
		Order("cart_items.id ASC").
		Scan(&lines).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return c.JSON(http.StatusOK, lines)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	cart, err := getOrCreateCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// Upsert inside a transaction so two adds for the same product can not
	// race into two rows. The (cart_id, product_id) unique index backs this.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).
			Update("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.publish(c, userID, map[string]any{
		"type":       "cart_item_added",
		"user_id":    userID,
		"product_id": product.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "product added to cart successfully"})
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	cart, err := getOrCreateCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		if err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).First(&item).Error; err != nil {
			return err
		}
		if item.Quantity > 1 {
			return tx.Model(&item).Update("quantity", gorm.Expr("quantity - 1")).Error
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.publish(c, userID, map[string]any{
		"type":       "cart_item_removed",
		"user_id":    userID,
		"product_id": product.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "product removed from cart successfully"})
}

func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	// An absent quantity and an explicit 0 both delete the item.
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a valid integer")
	}

	cart, err := getOrCreateCart(h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		if err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).First(&item).Error; err != nil {
			return err
		}
		if req.Quantity > 0 {
			return tx.Model(&item).Update("quantity", req.Quantity).Error
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.publish(c, userID, map[string]any{
		"type":       "cart_item_updated",
		"user_id":    userID,
		"product_id": product.ID,
		"quantity":   req.Quantity,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "cart item updated successfully"})
}
