package domain

import "github.com/shopspring/decimal"

const EventOrderPlaced = "OrderPlaced"

type OrderPlaced struct {
	OrderID int64
	Total   decimal.Decimal
	Items   []LineItem
}
