package tutorial

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("tutorial not found")
	ErrForbidden = errors.New("an active subscription is required for this tutorial")
)

type Tutorial struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	VideoURL    string          `json:"video_url,omitempty" db:"video_url"`
	Price       decimal.Decimal `json:"price" db:"price"`
	FreeAccess  bool            `json:"free_access" db:"free_access"`
	Order       int             `json:"order" db:"sort_order"`
	AuthorID    int64           `json:"author_id" db:"author_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// EffectivePrice is zero for free tutorials whatever price is stored.
func (t *Tutorial) EffectivePrice() decimal.Decimal {
	if t.FreeAccess {
		return decimal.Zero
	}
	return t.Price
}

// Listing is a tutorial as shown to a particular viewer. Locked entries
// carry no video URL.
type Listing struct {
	Tutorial
	Locked bool `json:"locked"`
}
