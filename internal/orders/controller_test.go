package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopworks/order-management-service/internal/config"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/order"
	"github.com/shopworks/order-management-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOrderService lets each test plug in only the calls it expects.
type mockOrderService struct {
	createOrder    func(ctx context.Context, params CreateOrderParams) (*order.Order, error)
	getOrder       func(ctx context.Context, id int) (*order.Order, error)
	createPayment  func(ctx context.Context, params CreatePaymentParams) (*order.Order, error)
	stageShipments func(ctx context.Context, r io.Reader) (*ShipmentStaging, error)
	applyShipments func(ctx context.Context, token string, checked []bool) (*BulkResult, error)
}

var _ OrderService = (*mockOrderService)(nil)

func (m *mockOrderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*order.Order, error) {
	return m.createOrder(ctx, params)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id int) (*order.Order, error) {
	return m.getOrder(ctx, id)
}

func (m *mockOrderService) ListOrders(context.Context) ([]*order.Order, error) {
	return nil, nil
}

func (m *mockOrderService) UpdateOrder(context.Context, UpdateOrderParams) (*order.Order, error) {
	return nil, nil
}

func (m *mockOrderService) DeleteOrder(context.Context, int) error { return nil }

func (m *mockOrderService) CreatePayment(ctx context.Context, params CreatePaymentParams) (*order.Order, error) {
	return m.createPayment(ctx, params)
}

func (m *mockOrderService) ImportPayments(context.Context, io.Reader) error { return nil }

func (m *mockOrderService) StageShipments(ctx context.Context, r io.Reader) (*ShipmentStaging, error) {
	return m.stageShipments(ctx, r)
}

func (m *mockOrderService) ApplyShipments(ctx context.Context, token string, checked []bool) (*BulkResult, error) {
	return m.applyShipments(ctx, token, checked)
}

func (m *mockOrderService) ExportUnshippedOrders(context.Context, io.Writer) error { return nil }

func (m *mockOrderService) ExportShipments(context.Context, io.Writer) error { return nil }

func newTestController(service OrderService) (*OrderController, chi.Router) {
	cfg := &config.Config{}
	cfg.Import.MaxUploadBytes = 1 << 20
	cfg.Import.RateEvery = time.Microsecond
	cfg.Import.RateBurst = 100

	router := chi.NewRouter()
	c := NewOrderController(service, logger.NewForTest(), cfg, ChiServerOptions{
		BaseRouter: router,
		BaseURL:    "/api",
	})

	return c, router
}

func TestCreatePaymentHandler(t *testing.T) {
	service := &mockOrderService{
		createPayment: func(_ context.Context, params CreatePaymentParams) (*order.Order, error) {
			if params.OrderID != 1 {
				return nil, errs.ErrNotFound
			}
			return &order.Order{ID: 1, PaymentStatus: order.PAID}, nil
		},
	}
	_, router := newTestController(service)

	tests := []struct {
		name       string
		path       string
		payload    string
		wantStatus int
		wantErr    string
	}{
		{
			name:       "OK",
			path:       "/api/orders/1/payments",
			payload:    `{"type":"completed","paid":"1000","paid_at":"2024-04-01 10:00:00","method":"bank"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown order",
			path:       "/api/orders/2/payments",
			payload:    `{"type":"completed","paid":"1000","paid_at":"2024-04-01 10:00:00","method":"bank"}`,
			wantStatus: http.StatusNotFound,
			wantErr:    errs.ErrNotFound.Error(),
		},
		{
			name:       "non-numeric id",
			path:       "/api/orders/abc/payments",
			payload:    `{"type":"completed","paid":"1000","paid_at":"2024-04-01 10:00:00","method":"bank"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "id must be numeric",
		},
		{
			name:       "missing type",
			path:       "/api/orders/1/payments",
			payload:    `{"paid":"1000","paid_at":"2024-04-01 10:00:00","method":"bank"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    fmt.Sprintf("%s: type", errs.ErrRequiredBodyParam),
		},
		{
			name:       "malformed paid_at",
			path:       "/api/orders/1/payments",
			payload:    `{"type":"completed","paid":"1000","paid_at":"04/01/2024","method":"bank"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "paid_at is not a timestamp",
		},
		{
			name:       "empty body",
			path:       "/api/orders/1/payments",
			payload:    "",
			wantStatus: http.StatusBadRequest,
			wantErr:    fmt.Sprintf("%s: empty body", errs.ErrInvalidPayload),
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.payload))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.wantStatus, res.StatusCode)

			if tt.wantErr != "" {
				errorResponse := new(errs.JSON)
				require.NoError(t, json.NewDecoder(res.Body).Decode(errorResponse))
				assert.Contains(t, errorResponse.Error, tt.wantErr)
			}
		})
	}
}

func TestImportShipmentsHandler(t *testing.T) {
	t.Run("clean upload returns a review token", func(t *testing.T) {
		service := &mockOrderService{
			stageShipments: func(_ context.Context, _ io.Reader) (*ShipmentStaging, error) {
				return &ShipmentStaging{
					Token: "token-1",
					Rows:  []order.Delivery{{OrderID: 1, ShippingCode: "CODE-001"}},
				}, nil
			},
		}
		_, router := newTestController(service)

		r := httptest.NewRequest(http.MethodPost, "/api/orders/shipments/import",
			strings.NewReader(shipmentHeader+"1,CODE-001,2024-04-01,2024-04-03,morning\n"))
		r.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		res := w.Result()
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)

		var got stageShipmentsResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, "token-1", got.Token)
		assert.Len(t, got.Rows, 1)
	})

	t.Run("defective upload returns every row problem", func(t *testing.T) {
		service := &mockOrderService{
			stageShipments: func(_ context.Context, _ io.Reader) (*ShipmentStaging, error) {
				return &ShipmentStaging{Errors: []string{
					"row 1 is missing fields",
					"row 3: order id is not numeric",
				}}, nil
			},
		}
		_, router := newTestController(service)

		r := httptest.NewRequest(http.MethodPost, "/api/orders/shipments/import",
			strings.NewReader(shipmentHeader+"1,CODE-001\n"))
		r.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		res := w.Result()
		defer res.Body.Close()

		require.Equal(t, http.StatusBadRequest, res.StatusCode)

		var got errs.ValidationJSON
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Len(t, got.Errors, 2)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		_, router := newTestController(&mockOrderService{})

		r := httptest.NewRequest(http.MethodPost, "/api/orders/shipments/import",
			strings.NewReader("whatever"))
		r.Header.Set("Content-Type", "application/xml")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})
}

func TestApplyShipmentsHandler(t *testing.T) {
	t.Run("partial failure reports conflict with per-row outcomes", func(t *testing.T) {
		service := &mockOrderService{
			applyShipments: func(_ context.Context, token string, checked []bool) (*BulkResult, error) {
				assert.Equal(t, "token-1", token)
				assert.Equal(t, []bool{true, true, true}, checked)
				return &BulkResult{
					Failed: true,
					Rows: []RowResult{
						{Index: 0, OrderID: 1, Status: order.UploadSuccess},
						{Index: 1, OrderID: 2, Status: order.UploadError, Reason: "order 2 is already completed"},
						{Index: 2, OrderID: 3, Status: order.UploadSuccess},
					},
				}, nil
			},
		}
		_, router := newTestController(service)

		r := httptest.NewRequest(http.MethodPut, "/api/orders/shipments",
			strings.NewReader(`{"token":"token-1","checked":[true,true,true]}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		res := w.Result()
		defer res.Body.Close()

		require.Equal(t, http.StatusConflict, res.StatusCode)

		var got BulkResult
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.True(t, got.Failed)
		require.Len(t, got.Rows, 3)
		assert.Equal(t, order.UploadError, got.Rows[1].Status)
	})

	t.Run("missing token", func(t *testing.T) {
		_, router := newTestController(&mockOrderService{})

		r := httptest.NewRequest(http.MethodPut, "/api/orders/shipments",
			strings.NewReader(`{"checked":[true]}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})

	t.Run("stale token", func(t *testing.T) {
		service := &mockOrderService{
			applyShipments: func(_ context.Context, _ string, _ []bool) (*BulkResult, error) {
				return nil, fmt.Errorf("%w: review token %q", errs.ErrNotFound, "token-1")
			},
		}
		_, router := newTestController(service)

		r := httptest.NewRequest(http.MethodPut, "/api/orders/shipments",
			strings.NewReader(`{"token":"token-1","checked":[true]}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})
}

func TestDownloadShipmentTemplate(t *testing.T) {
	_, router := newTestController(&mockOrderService{})

	r := httptest.NewRequest(http.MethodGet, "/api/orders/shipments/template", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/csv", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "attachment")

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, ShipmentTemplate, string(body))
}
