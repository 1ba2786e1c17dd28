package orders

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/order"
)

// CSV column layouts. The first line of every upload is a header
// and is discarded without inspection.
const (
	shipmentFieldCount = 5
	paymentFieldCount  = 5

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// ShipmentImport is the outcome of scanning a shipment CSV: either
// every row parsed cleanly and Rows holds the staged records, or
// Errors holds one message per defect and Rows is empty. The two
// never mix.
type ShipmentImport struct {
	Rows   []order.Delivery
	Errors []string
}

// Valid reports whether every row of the upload parsed cleanly.
func (si *ShipmentImport) Valid() bool {
	return len(si.Errors) == 0
}

// ParseShipments scans shipment CSV text in a single pass, collecting
// every row problem instead of stopping at the first one. Quote
// characters are stripped before splitting on commas. A row with fewer
// than five fields, or an empty value in any of them, is reported and
// skipped; the scan always continues to the end of the upload.
func ParseShipments(r io.Reader) (*ShipmentImport, error) {
	result := new(ShipmentImport)

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		// Empty upload: no header, no rows.
		return result, nil
	}

	for row := 1; scanner.Scan(); row++ {
		fields := splitRow(scanner.Text())

		if !rowComplete(fields, shipmentFieldCount) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d is missing fields", row))
			continue
		}

		rowOK := true

		orderID, err := strconv.Atoi(fields[0])
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: order id is not numeric", row))
			rowOK = false
		}

		shippingDate, err1 := time.Parse(dateLayout, fields[2])
		deliveryDate, err2 := time.Parse(dateLayout, fields[3])
		if err1 != nil || err2 != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: date format is not yyyy-MM-dd", row))
			rowOK = false
		}

		if !rowOK {
			continue
		}

		result.Rows = append(result.Rows, order.Delivery{
			OrderID:          orderID,
			ShippingCode:     fields[1],
			ShippingDate:     shippingDate,
			DeliveryDate:     deliveryDate,
			DeliveryTimezone: fields[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	// Never hand out rows from a defective upload.
	if len(result.Errors) > 0 {
		result.Rows = nil
	}

	return result, nil
}

// paymentRow is one parsed line of a payment CSV:
// order_id,type,paid,paid_at,method.
type paymentRow struct {
	PaidAt  time.Time
	Type    string
	Method  string
	Paid    decimal.Decimal
	OrderID int
}

// parsePaymentRow parses a single payment CSV line. Unlike the
// shipment pipeline, payment imports are strict: the first defective
// row aborts the whole import, so errors are returned one at a time.
func parsePaymentRow(line string, row int) (*paymentRow, error) {
	fields := splitRow(line)

	if !rowComplete(fields, paymentFieldCount) {
		return nil, fmt.Errorf("row %d is missing fields", row)
	}

	orderID, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("row %d: order id is not numeric", row)
	}

	paid, err := decimal.NewFromString(fields[2])
	if err != nil {
		return nil, fmt.Errorf("row %d: paid amount is not numeric", row)
	}

	paidAt, err := time.Parse(timestampLayout, fields[3])
	if err != nil {
		return nil, fmt.Errorf("row %d: paid_at is not a timestamp", row)
	}

	return &paymentRow{
		OrderID: orderID,
		Type:    fields[1],
		Paid:    paid,
		PaidAt:  paidAt,
		Method:  fields[4],
	}, nil
}

func splitRow(line string) []string {
	return strings.Split(strings.ReplaceAll(line, `"`, ""), ",")
}

func rowComplete(fields []string, want int) bool {
	if len(fields) < want {
		return false
	}
	for _, f := range fields[:want] {
		if f == "" {
			return false
		}
	}
	return true
}
