package inventory

import "time"

// Product is a stocked item.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	ReorderLevel int     `json:"reorder_level"`
	SupplierID   string  `json:"supplier_id,omitempty"`
}

// LowStock is true once quantity has dropped to the reorder level.
func (p Product) LowStock() bool {
	return p.Quantity <= p.ReorderLevel
}

// StockValue is price times quantity on hand.
func (p Product) StockValue() float64 {
	return p.Price * float64(p.Quantity)
}

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderReceived  OrderStatus = "received"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type PurchaseOrder struct {
	ID         string      `json:"id"`
	SupplierID string      `json:"supplier_id"`
	Status     OrderStatus `json:"status"`
	Lines      []OrderLine `json:"lines"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Total is the sum of every line.
func (o PurchaseOrder) Total() float64 {
	var total float64
	for _, l := range o.Lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}
