package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FulfillmentOption says whether the customer trades in an empty tank (swap)
// or buys a new cylinder.
type FulfillmentOption string

const (
	OptionSwap FulfillmentOption = "swap"
	OptionNew  FulfillmentOption = "new"
)

func (o FulfillmentOption) Valid() bool {
	return o == OptionSwap || o == OptionNew
}

type Product struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Weight        string            `json:"weight"`
	Price         decimal.Decimal   `json:"price"`
	ImageURL      string            `json:"image_url"`
	Option        FulfillmentOption `json:"option"`
	StockQuantity int               `json:"stock_quantity"`
	IsActive      bool              `json:"is_active"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type StockAlertType string

const (
	AlertLowStock   StockAlertType = "low_stock"
	AlertOutOfStock StockAlertType = "out_of_stock"
)

type StockAlert struct {
	ID           uuid.UUID      `json:"id"`
	ProductID    uuid.UUID      `json:"product_id"`
	ProductName  string         `json:"product_name"`
	CurrentStock int            `json:"current_stock"`
	Threshold    int            `json:"threshold"`
	AlertType    StockAlertType `json:"alert_type"`
	IsResolved   bool           `json:"is_resolved"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

type OperationType string

const (
	OperationIncoming   OperationType = "incoming"
	OperationOutgoing   OperationType = "outgoing"
	OperationAdjustment OperationType = "adjustment"
)

// StockOperation is one entry of the stock ledger. OrderID is set for
// outgoing movements caused by a checkout.
type StockOperation struct {
	ID            int64         `json:"id"`
	ProductID     uuid.UUID     `json:"product_id"`
	OrderID       *uuid.UUID    `json:"order_id,omitempty"`
	OperationType OperationType `json:"operation_type"`
	ChangeQuant   int           `json:"change_quant"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
