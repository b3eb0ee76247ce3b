package orders

import (
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

// Columns are the searchable and sortable columns of an order list.
var Columns = []table.Column[cake.Order]{
	{Key: "name", Text: func(o cake.Order) string { return o.Customer.Name }},
	{Key: "phone", Text: func(o cake.Order) string { return o.Customer.Phone }},
	{
		Key:    "total",
		Text:   func(o cake.Order) string { return cake.FormatBRL(o.TotalValue) },
		Number: func(o cake.Order) float64 { return o.TotalValue },
	},
	{Key: "date", Text: deliveryText, Number: deliveryUnix},
}

func deliveryText(o cake.Order) string {
	t, err := o.DeliveryTime()
	if err != nil {
		return o.DeliveryDate
	}
	return t.Format("02/01/2006 15:04")
}

func deliveryUnix(o cake.Order) float64 {
	t, err := o.DeliveryTime()
	if err != nil {
		return 0
	}
	return float64(t.Unix())
}
