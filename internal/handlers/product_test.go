package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"music-shop/internal/models"
)

func mustProduct(t *testing.T, env *testEnv, name, price string) *models.Product {
	t.Helper()
	prod := models.Product{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, env.DB.Create(&prod).Error)
	return &prod
}

func TestGetProducts(t *testing.T) {
	env := newTestEnv(t)
	mustProduct(t, env, "Yamaha C40", "139.99")
	mustProduct(t, env, "Fender Jazz Bass", "1199.50")

	rec, c := env.doJSONRequest(t, http.MethodGet, "/products", nil)
	require.NoError(t, env.P.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	require.Equal(t, "Yamaha C40", resp[0].Name)
	require.Equal(t, "Fender Jazz Bass", resp[1].Name)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	prod := mustProduct(t, env, "Yamaha C40", "139.99")

	rec, c := env.doJSONRequest(t, http.MethodGet, "/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID    uint            `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, prod.ID, resp.ID)
	require.Equal(t, "Yamaha C40", resp.Name)
	require.True(t, resp.Price.Equal(decimal.RequireFromString("139.99")))
}

func TestGetProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodGet, "/products/42", nil)
	c.SetParamNames("id")
	c.SetParamValues("42")
	err := env.P.GetProduct(c)
	require.Equal(t, http.StatusNotFound, httpCode(t, err))
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(t, http.MethodPost, "/products/create", map[string]any{
		"name":  "Roland Juno-106",
		"price": "899.00",
	})
	require.NoError(t, env.P.CreateProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var prod models.Product
	require.NoError(t, env.DB.Where("name = ?", "Roland Juno-106").First(&prod).Error)
	require.True(t, prod.Price.Equal(decimal.RequireFromString("899.00")))
	require.Equal(t, "roland-juno-106", prod.Slug)
}

func TestCreateProductMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodPost, "/products/create", map[string]any{"price": "10.00"})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.P.CreateProduct(c)))

	_, c = env.doJSONRequest(t, http.MethodPost, "/products/create", map[string]any{"name": "No Price"})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.P.CreateProduct(c)))

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateProductBadPrice(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodPost, "/products/create", map[string]any{
		"name":  "Broken",
		"price": "not-a-number",
	})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.P.CreateProduct(c)))

	_, c = env.doJSONRequest(t, http.MethodPost, "/products/create", map[string]any{
		"name":  "Free",
		"price": "-5.00",
	})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.P.CreateProduct(c)))

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateProductRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	prod := mustProduct(t, env, "Yamaha C40", "139.99")

	rec, c := env.doJSONRequest(t, http.MethodPut, "/products/1/update", map[string]any{"price": "149.99"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.UpdateProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.doJSONRequest(t, http.MethodGet, "/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.GetProduct(c))

	var resp struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, prod.Name, resp.Name)
	require.True(t, resp.Price.Equal(decimal.RequireFromString("149.99")))
}

func TestUpdateProductBadPrice(t *testing.T) {
	env := newTestEnv(t)
	mustProduct(t, env, "Yamaha C40", "139.99")

	_, c := env.doJSONRequest(t, http.MethodPut, "/products/1/update", map[string]any{"price": "oops"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.P.UpdateProduct(c)))

	var prod models.Product
	require.NoError(t, env.DB.First(&prod, 1).Error)
	require.True(t, prod.Price.Equal(decimal.RequireFromString("139.99")))
}

func TestUpdateProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodPut, "/products/7/update", map[string]any{"price": "10.00"})
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.Equal(t, http.StatusNotFound, httpCode(t, env.P.UpdateProduct(c)))
}

func TestUpdateProductRenamesSlug(t *testing.T) {
	env := newTestEnv(t)
	mustProduct(t, env, "Yamaha C40", "139.99")

	name := "Yamaha C80"
	_, c := env.doJSONRequest(t, http.MethodPut, "/products/1/update", map[string]any{"name": name})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.UpdateProduct(c))

	var prod models.Product
	require.NoError(t, env.DB.First(&prod, 1).Error)
	require.Equal(t, "yamaha-c80", prod.Slug)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	mustProduct(t, env, "Yamaha C40", "139.99")

	rec, c := env.doJSONRequest(t, http.MethodDelete, "/products/1/delete", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.DeleteProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDeleteProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodDelete, "/products/3/delete", nil)
	c.SetParamNames("id")
	c.SetParamValues("3")
	require.Equal(t, http.StatusNotFound, httpCode(t, env.P.DeleteProduct(c)))
}
