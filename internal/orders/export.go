package orders

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopworks/order-management-service/internal/models/order"
)

// ShipmentTemplate is the header-only CSV handed out so that
// shipment uploads arrive in the expected column order.
const ShipmentTemplate = "order_id,shipping_code,shipping_date,delivery_date,delivery_timezone\n"

var ordersExportHeader = []string{
	"id", "customer_id", "status", "total", "tax", "discount",
	"shipping", "grand_total", "paid", "payment_method",
	"payment_status", "note",
}

var shipmentsExportHeader = []string{
	"order_id", "shipping_code", "shipping_date", "delivery_date",
	"delivery_timezone", "status", "payment_status",
	"create_at", "update_at",
}

// ExportUnshippedOrders writes every order still awaiting shipment
// as CSV.
func (s *Service) ExportUnshippedOrders(ctx context.Context, w io.Writer) error {
	orders, err := s.repo.ListOrdersByStatus(ctx, order.ORDERED)
	if err != nil {
		return fmt.Errorf("list unshipped orders: %w", err)
	}

	cw := csv.NewWriter(w)

	if err = cw.Write(ordersExportHeader); err != nil {
		return err
	}

	for _, o := range orders {
		record := []string{
			strconv.Itoa(o.ID),
			strconv.Itoa(o.CustomerID),
			string(o.Status),
			o.Total.String(),
			o.Tax.String(),
			o.Discount.String(),
			o.Shipping.String(),
			o.GrandTotal.String(),
			o.Paid.String(),
			o.PaymentMethod,
			string(o.PaymentStatus),
			o.Note,
		}
		if err = cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// ExportShipments writes every delivery record joined with the current
// order state as CSV.
func (s *Service) ExportShipments(ctx context.Context, w io.Writer) error {
	deliveries, err := s.repo.ListDeliveries(ctx)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}

	cw := csv.NewWriter(w)

	if err = cw.Write(shipmentsExportHeader); err != nil {
		return err
	}

	for _, d := range deliveries {
		record := []string{
			strconv.Itoa(d.OrderID),
			d.ShippingCode,
			d.ShippingDate.Format(dateLayout),
			d.DeliveryDate.Format(dateLayout),
			d.DeliveryTimezone,
			string(d.Status),
			string(d.PaymentStatus),
			d.CreatedAt.Format(timestampLayout),
			d.UpdatedAt.Format(timestampLayout),
		}
		if err = cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}
