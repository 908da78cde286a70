package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"music-shop/internal/logging"
	"music-shop/internal/models"
	"music-shop/internal/mykafka"
	"music-shop/internal/service/search"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
	ES       *elasticsearch.Client
	Index    string
}

type productSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["product_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// index mirrors the product into elasticsearch, best effort.
func (h *ProductHandler) index(c echo.Context, prod *models.Product) {
	if h.ES == nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.Index, prod); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index failed", "product_id", prod.ID, "error", err)
	}
}

func (h *ProductHandler) unindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	if err := search.DeleteProduct(c.Request().Context(), h.ES, h.Index, id); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete failed", "product_id", id, "error", err)
	}
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Order("id ASC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	data := make([]productSummary, len(products))
	for i, p := range products {
		data[i] = productSummary{ID: p.ID, Name: p.Name}
	}
	return c.JSON(http.StatusOK, data)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name          string           `json:"name"`
		Price         *decimal.Decimal `json:"price"`
		Description   string           `json:"description"`
		Brand         string           `json:"brand"`
		Image         string           `json:"image"`
		SubcategoryID *uint            `json:"subcategory_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be a valid number")
	}
	if req.Name == "" || req.Price == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name and price are required fields")
	}
	if !req.Price.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be a positive number")
	}

	prod := models.Product{
		Name:          req.Name,
		Price:         *req.Price,
		Description:   req.Description,
		Brand:         req.Brand,
		Image:         req.Image,
		SubcategoryID: req.SubcategoryID,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not create product")
	}

	h.index(c, &prod)
	h.publish(c, map[string]any{
		"type":       "product_created",
		"product_id": prod.ID,
		"name":       prod.Name,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "product created successfully"})
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var req struct {
		Name  *string          `json:"name"`
		Price *decimal.Decimal `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be a valid number")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if req.Name != nil && *req.Name != "" {
		prod.Name = *req.Name
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be a positive number")
		}
		prod.Price = *req.Price
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not update product")
	}

	h.index(c, &prod)
	h.publish(c, map[string]any{
		"type":       "product_updated",
		"product_id": prod.ID,
		"name":       prod.Name,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "product updated successfully"})
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := h.DB.Delete(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	h.unindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":       "product_deleted",
		"product_id": prod.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": "product deleted successfully"})
}
