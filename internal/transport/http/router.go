package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"music-shop/internal/handlers"
	"music-shop/internal/handlers/cart"
	"music-shop/internal/handlers/order"
	"music-shop/internal/payment"
	"music-shop/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *order.OrderHandler
	PaymentHandler *payment.Handler
	Tokens         *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	products := e.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("/create", d.ProductHandler.CreateProduct)
	products.PUT("/:id/update", d.ProductHandler.UpdateProduct)
	products.DELETE("/:id/delete", d.ProductHandler.DeleteProduct)

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/logout", d.AuthHandler.LogOut)
	e.GET("/profile", d.AuthHandler.Profile, d.Tokens.AutoRefreshMiddleware)
	e.POST("/password/reset", d.AuthHandler.PasswordReset)
	e.POST("/password/change", d.AuthHandler.PasswordChange)

	cartGroup := e.Group("/cart", d.Tokens.AutoRefreshMiddleware)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("/add/:product_id", d.CartHandler.AddToCart)
	cartGroup.POST("/remove/:product_id", d.CartHandler.RemoveFromCart)
	cartGroup.POST("/update/:product_id", d.CartHandler.UpdateCartItem)

	orderGroup := e.Group("/order", d.Tokens.AutoRefreshMiddleware)
	orderGroup.POST("/create", d.OrderHandler.CreateOrder)
	orderGroup.GET("/history", d.OrderHandler.OrderHistory)
	orderGroup.GET("/:id", d.OrderHandler.OrderDetail)

	paymentGroup := e.Group("/payment", d.Tokens.AutoRefreshMiddleware)
	paymentGroup.POST("/initiate", d.PaymentHandler.Initiate)
	paymentGroup.GET("/confirm", d.PaymentHandler.Confirm)
	paymentGroup.GET("/cancel", d.PaymentHandler.Cancel)
}
