package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shipmentHeader = "order_id,shipping_code,shipping_date,delivery_date,delivery_timezone\n"

func TestParseShipments(t *testing.T) {
	t.Run("all rows valid", func(t *testing.T) {
		csv := shipmentHeader +
			"1,CODE-001,2024-04-01,2024-04-03,morning\n" +
			`"2","CODE-002","2024-04-02","2024-04-05","evening"` + "\n"

		got, err := ParseShipments(strings.NewReader(csv))
		require.NoError(t, err)

		assert.True(t, got.Valid())
		require.Len(t, got.Rows, 2)

		assert.Equal(t, 1, got.Rows[0].OrderID)
		assert.Equal(t, "CODE-001", got.Rows[0].ShippingCode)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), got.Rows[0].ShippingDate)
		assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), got.Rows[0].DeliveryDate)
		assert.Equal(t, "morning", got.Rows[0].DeliveryTimezone)

		// Quotes are stripped before splitting.
		assert.Equal(t, 2, got.Rows[1].OrderID)
		assert.Equal(t, "evening", got.Rows[1].DeliveryTimezone)
	})

	t.Run("missing field reported once and scan continues", func(t *testing.T) {
		csv := shipmentHeader +
			"1,CODE-001,,2024-04-03,morning\n" +
			"2,CODE-002,2024-04-02,2024-04-05,evening\n"

		got, err := ParseShipments(strings.NewReader(csv))
		require.NoError(t, err)

		require.Len(t, got.Errors, 1)
		assert.Contains(t, got.Errors[0], "missing fields")
		// A defective upload stages nothing.
		assert.Empty(t, got.Rows)
	})

	t.Run("one error per bad row", func(t *testing.T) {
		csv := shipmentHeader +
			"1,CODE-001\n" +
			"abc,CODE-002,2024-04-02,2024-04-05,evening\n" +
			"3,CODE-003,04/01/2024,2024-04-05,evening\n"

		got, err := ParseShipments(strings.NewReader(csv))
		require.NoError(t, err)

		require.Len(t, got.Errors, 3)
		assert.Contains(t, got.Errors[0], "missing fields")
		assert.Contains(t, got.Errors[1], "not numeric")
		assert.Contains(t, got.Errors[2], "yyyy-MM-dd")
	})

	t.Run("bad id and bad date accumulate on the same row", func(t *testing.T) {
		csv := shipmentHeader + "abc,CODE-001,04/01/2024,2024-04-05,evening\n"

		got, err := ParseShipments(strings.NewReader(csv))
		require.NoError(t, err)

		assert.Len(t, got.Errors, 2)
	})

	t.Run("header only", func(t *testing.T) {
		got, err := ParseShipments(strings.NewReader(shipmentHeader))
		require.NoError(t, err)

		assert.True(t, got.Valid())
		assert.Empty(t, got.Rows)
	})

	t.Run("empty upload", func(t *testing.T) {
		got, err := ParseShipments(strings.NewReader(""))
		require.NoError(t, err)

		assert.True(t, got.Valid())
		assert.Empty(t, got.Rows)
	})
}

func TestParsePaymentRow(t *testing.T) {
	t.Run("valid row", func(t *testing.T) {
		got, err := parsePaymentRow(`"1","completed","1000","2024-04-01 10:30:00","bank"`, 1)
		require.NoError(t, err)

		assert.Equal(t, 1, got.OrderID)
		assert.Equal(t, "completed", got.Type)
		assert.True(t, got.Paid.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, time.Date(2024, 4, 1, 10, 30, 0, 0, time.UTC), got.PaidAt)
		assert.Equal(t, "bank", got.Method)
	})

	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{
			name:    "missing fields",
			line:    "1,completed,1000",
			wantErr: "missing fields",
		},
		{
			name:    "empty field",
			line:    "1,,1000,2024-04-01 10:30:00,bank",
			wantErr: "missing fields",
		},
		{
			name:    "non-numeric order id",
			line:    "abc,completed,1000,2024-04-01 10:30:00,bank",
			wantErr: "order id is not numeric",
		},
		{
			name:    "non-numeric amount",
			line:    "1,completed,abc,2024-04-01 10:30:00,bank",
			wantErr: "amount is not numeric",
		},
		{
			name:    "bad timestamp",
			line:    "1,completed,1000,2024-04-01,bank",
			wantErr: "not a timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePaymentRow(tt.line, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
