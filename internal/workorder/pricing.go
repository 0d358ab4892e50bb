package workorder

import (
	"fmt"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/shopspring/decimal"
)

// LineInput is one requested service line: a service reference and a quantity
type LineInput struct {
	ServiceID string `json:"service_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// Catalog maps service id to its current price
type Catalog map[string]decimal.Decimal

// Price captures each line's unit price from the catalog and computes
// the line totals and the order total, rounded to cents.
func Price(lines []LineInput, catalog Catalog) ([]model.WorkOrderLine, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, invalid("lines", "at least one service is required")
	}

	priced := make([]model.WorkOrderLine, 0, len(lines))
	total := decimal.Zero
	for i, in := range lines {
		if in.ServiceID == "" {
			return nil, decimal.Zero, invalid(fmt.Sprintf("lines[%d].service_id", i), "is required")
		}
		if in.Quantity <= 0 {
			return nil, decimal.Zero, invalid(fmt.Sprintf("lines[%d].quantity", i), "must be a positive integer")
		}
		price, ok := catalog[in.ServiceID]
		if !ok {
			return nil, decimal.Zero, notFound("service", in.ServiceID)
		}
		if price.IsNegative() {
			return nil, decimal.Zero, invalid(fmt.Sprintf("lines[%d].unit_price", i), "must not be negative")
		}

		unit := price.Round(2)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		priced = append(priced, model.WorkOrderLine{
			ServiceID:  in.ServiceID,
			Quantity:   in.Quantity,
			UnitPrice:  unit,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return priced, total.Round(2), nil
}
