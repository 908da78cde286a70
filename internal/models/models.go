package models

import (
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CategoryAcoustic = "acoustic"
	CategoryElectric = "electric"
)

const (
	SubcategoryGuitars = "guitars"
	SubcategoryViolins = "violins"
	SubcategoryPianos  = "pianos"
	SubcategoryBasses  = "basses"
	SubcategorySynths  = "synths"
)

type Category struct {
	ID            uint          `gorm:"primaryKey;autoIncrement"    json:"id"`
	Name          string        `gorm:"unique;not null"             json:"name"`
	Subcategories []Subcategory `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Subcategory struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"not null"                 json:"name"`
	CategoryID uint   `gorm:"index;not null"           json:"category_id"`
}

type Product struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	Name          string          `gorm:"not null"                    json:"name"`
	SubcategoryID *uint           `gorm:"index"                       json:"subcategory_id,omitempty"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Image         string          `json:"image"`
	Brand         string          `json:"brand"`
	Slug          string          `gorm:"uniqueIndex"                 json:"slug"`
}

// Slug always follows the current name, also on updates through Save.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.Slug = slug.Make(p.Name)
	return nil
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	Email        string `json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null"        json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement"              json:"id"`
	CartID    uint `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uint `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  uint `gorm:"not null;default:1;check:quantity > 0" json:"quantity"`
}

type Order struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID    uint        `gorm:"index;not null"              json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
	Items     []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID   uint `gorm:"index;not null"              json:"order_id"`
	ProductID uint `gorm:"not null"                    json:"product_id"`
	Quantity  uint `gorm:"not null;check:quantity > 0" json:"quantity"`
}
