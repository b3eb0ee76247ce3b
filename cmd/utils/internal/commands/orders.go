package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/enums/orderstatus"
)

// OrdersAPI is the part of the REST API the order commands use.
type OrdersAPI interface {
	OrdersByStatus(ctx context.Context, token, status string) ([]cake.Order, error)
	OrdersByDeliveryDate(ctx context.Context, token, date, status string) ([]cake.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, id cake.ID, status string) error
}

// NewAPIClient builds the API client and reads the staff token from api.token.
func NewAPIClient(config *apt.Config, logger apt.Logger) (*api.Client, string, error) {
	client, err := api.NewClient(config, logger)
	if err != nil {
		return nil, "", err
	}
	token, _ := config.GetString("api.token")
	if token == "" {
		return nil, "", api.ErrMissingToken
	}
	return client, token, nil
}

// ListOrders prints the orders with status, narrowed to a delivery date
// (YYYY-MM-DD) when date is set.
func ListOrders(ctx context.Context, client OrdersAPI, token, status, date string, out io.Writer) error {
	if !orderstatus.Valid(status) {
		return fmt.Errorf("unknown status %q", status)
	}

	var (
		orders []cake.Order
		err    error
	)
	if date == "" {
		orders, err = client.OrdersByStatus(ctx, token, status)
	} else {
		orders, err = client.OrdersByDeliveryDate(ctx, token, date, status)
	}
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLIENTE\tTELEFONE\tENTREGA\tTOTAL")
	for _, o := range orders {
		delivery := o.DeliveryDate
		if t, err := o.DeliveryTime(); err == nil {
			delivery = t.Format("02/01/2006 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Customer.Name, o.Customer.Phone, delivery, cake.FormatBRL(o.TotalValue))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d pedido(s) %s\n", len(orders), orderstatus.ByName(status).Label())
	return nil
}

// SetStatus moves an order to status.
func SetStatus(ctx context.Context, client OrdersAPI, token string, id cake.ID, status string, logger apt.Logger) error {
	if !orderstatus.Valid(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	if id.IsZero() {
		return fmt.Errorf("order id is required")
	}
	if err := client.UpdateOrderStatus(ctx, token, id, status); err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	logger.Info("Order status updated", "order_id", id.String(), "status", status)
	return nil
}
