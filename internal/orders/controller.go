package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/config"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/order"
	"github.com/shopworks/order-management-service/pkg/limiter"
	"github.com/shopworks/order-management-service/pkg/logger"
)

type (
	MiddlewareFunc func(http.Handler) http.Handler

	ChiServerOptions struct {
		BaseRouter  chi.Router
		BaseURL     string
		Middlewares []MiddlewareFunc
	}
)

// OrderService is the contract the HTTP layer consumes.
type OrderService interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (*order.Order, error)
	GetOrder(ctx context.Context, id int) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	UpdateOrder(ctx context.Context, params UpdateOrderParams) (*order.Order, error)
	DeleteOrder(ctx context.Context, id int) error
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*order.Order, error)
	ImportPayments(ctx context.Context, r io.Reader) error
	StageShipments(ctx context.Context, r io.Reader) (*ShipmentStaging, error)
	ApplyShipments(ctx context.Context, token string, checked []bool) (*BulkResult, error)
	ExportUnshippedOrders(ctx context.Context, w io.Writer) error
	ExportShipments(ctx context.Context, w io.Writer) error
}

var _ OrderService = (*Service)(nil)

type OrderController struct {
	service        OrderService
	logger         logger.Logger
	uploadLimiter  *limiter.DynamicRateLimiter
	maxUploadBytes int64
}

// NewOrderController registers the order routes on the given router.
func NewOrderController(
	service OrderService, logger logger.Logger, cfg *config.Config, options ChiServerOptions,
) *OrderController {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := &OrderController{
		service:        service,
		logger:         logger,
		uploadLimiter:  limiter.NewDynamicRateLimiter(cfg.Import.RateEvery, cfg.Import.RateBurst),
		maxUploadBytes: cfg.Import.MaxUploadBytes,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/orders", c.CreateOrder)
		r.Get(options.BaseURL+"/orders", c.ListOrders)
		r.Get(options.BaseURL+"/orders/export", c.ExportOrders)
		r.Post(options.BaseURL+"/orders/payments/import", c.ImportPayments)
		r.Post(options.BaseURL+"/orders/shipments/import", c.ImportShipments)
		r.Put(options.BaseURL+"/orders/shipments", c.ApplyShipments)
		r.Get(options.BaseURL+"/orders/shipments/template", c.DownloadShipmentTemplate)
		r.Get(options.BaseURL+"/orders/shipments/export", c.ExportShipments)
		r.Get(options.BaseURL+"/orders/{id}", c.GetOrder)
		r.Put(options.BaseURL+"/orders/{id}", c.UpdateOrder)
		r.Delete(options.BaseURL+"/orders/{id}", c.DeleteOrder)
		r.Post(options.BaseURL+"/orders/{id}/payments", c.CreatePayment)
	})

	return c
}

// createOrderRequest is the JSON payload for order creation.
type createOrderRequest struct {
	PaymentMethod string                      `json:"payment_method"`
	Note          string                      `json:"note"`
	Shipping      decimal.Decimal             `json:"shipping"`
	Products      []createOrderProductRequest `json:"products"`
	CustomerID    int                         `json:"customer_id"`
}

type createOrderProductRequest struct {
	Discount  decimal.Decimal `json:"discount"`
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
}

// Create new order (POST /api/orders).
func (c *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	if len(req.Products) == 0 {
		c.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "products"})
		return
	}

	params := CreateOrderParams{
		CustomerID:    req.CustomerID,
		Shipping:      req.Shipping,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
	}
	for _, p := range req.Products {
		params.Products = append(params.Products, CreateOrderProduct{
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
			Discount:  p.Discount,
		})
	}

	created, err := c.service.CreateOrder(r.Context(), params)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err = json.NewEncoder(w).Encode(created); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// List orders (GET /api/orders).
func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := c.service.ListOrders(r.Context())
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(orders); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// Show order (GET /api/orders/{id}).
func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	o, err := c.service.GetOrder(r.Context(), id)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(o); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// updateOrderRequest is the JSON payload for an administrative update.
type updateOrderRequest struct {
	PaymentMethod string              `json:"payment_method"`
	Note          string              `json:"note"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	Shipping      decimal.Decimal     `json:"shipping"`
	CustomerID    int                 `json:"customer_id"`
}

// Administrative order update (PUT /api/orders/{id}).
func (c *OrderController) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	defer r.Body.Close()

	var req updateOrderRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	updated, err := c.service.UpdateOrder(r.Context(), UpdateOrderParams{
		ID:            id,
		CustomerID:    req.CustomerID,
		Shipping:      req.Shipping,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(updated); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// Administrative delete (DELETE /api/orders/{id}).
func (c *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = c.service.DeleteOrder(r.Context(), id); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// createPaymentRequest is the JSON payload for recording a payment.
type createPaymentRequest struct {
	Type   string          `json:"type"`
	Method string          `json:"method"`
	PaidAt string          `json:"paid_at"`
	Paid   decimal.Decimal `json:"paid"`
}

// Record payment (POST /api/orders/{id}/payments).
func (c *OrderController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	defer r.Body.Close()

	var req createPaymentRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	if req.Type == "" {
		c.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "type"})
		return
	}

	paidAt, err := time.Parse(timestampLayout, req.PaidAt)
	if err != nil {
		c.ErrorHandlerFunc(w, r, fmt.Errorf(
			"%w: paid_at is not a timestamp", errs.ErrInvalidPayload))
		return
	}

	updated, err := c.service.CreatePayment(r.Context(), CreatePaymentParams{
		OrderID: id,
		Type:    req.Type,
		Paid:    req.Paid,
		Method:  req.Method,
		PaidAt:  paidAt,
	})
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(updated); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// Strict payment CSV upload (POST /api/orders/payments/import).
func (c *OrderController) ImportPayments(w http.ResponseWriter, r *http.Request) {
	upload, err := c.openUpload(w, r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
	defer upload.Close()

	if err = c.service.ImportPayments(r.Context(), upload); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// stageShipmentsResponse returns the review token with the rows
// awaiting confirmation.
type stageShipmentsResponse struct {
	Token string           `json:"token"`
	Rows  []order.Delivery `json:"rows"`
}

// Shipment CSV upload (POST /api/orders/shipments/import).
func (c *OrderController) ImportShipments(w http.ResponseWriter, r *http.Request) {
	upload, err := c.openUpload(w, r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
	defer upload.Close()

	staged, err := c.service.StageShipments(r.Context(), upload)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// All row problems at once; nothing was staged.
	if len(staged.Errors) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		if err = json.NewEncoder(w).Encode(errs.ValidationJSON{Errors: staged.Errors}); err != nil {
			c.ErrorHandlerFunc(w, r, err)
		}
		return
	}

	if err = json.NewEncoder(w).Encode(stageShipmentsResponse{
		Token: staged.Token,
		Rows:  staged.Rows,
	}); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// applyShipmentsRequest selects staged rows for application.
type applyShipmentsRequest struct {
	Token   string `json:"token"`
	Checked []bool `json:"checked"`
}

// Apply staged shipment rows (PUT /api/orders/shipments).
func (c *OrderController) ApplyShipments(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req applyShipmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	if req.Token == "" {
		c.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "token"})
		return
	}

	result, err := c.service.ApplyShipments(r.Context(), req.Token, req.Checked)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Succeeded rows stay persisted even when the batch reports failure.
	if result.Failed {
		w.WriteHeader(http.StatusConflict)
	}

	if err = json.NewEncoder(w).Encode(result); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// Shipment CSV template download (GET /api/orders/shipments/template).
func (c *OrderController) DownloadShipmentTemplate(w http.ResponseWriter, r *http.Request) {
	attachment := fmt.Sprintf("attachment; filename=orderTemplate_%d.csv", time.Now().UnixMilli())

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", attachment)

	if _, err := io.WriteString(w, ShipmentTemplate); err != nil {
		c.logger.Errorf("write template: %s", err)
	}
}

// Unshipped orders CSV download (GET /api/orders/export).
func (c *OrderController) ExportOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=no_shipping_orders.csv")

	if err := c.service.ExportUnshippedOrders(r.Context(), w); err != nil {
		c.logger.Errorf("export orders: %s", err)
	}
}

// Shipments CSV download (GET /api/orders/shipments/export).
func (c *OrderController) ExportShipments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=shipments.csv")

	if err := c.service.ExportShipments(r.Context(), w); err != nil {
		c.logger.Errorf("export shipments: %s", err)
	}
}

// openUpload returns the uploaded CSV stream: the "file" part of a
// multipart form, or the raw body for a text/csv request.
func (c *OrderController) openUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	if !c.uploadLimiter.Allow() {
		return nil, fmt.Errorf("%w: too many uploads", errs.ErrRateLimit)
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidContentType, err)
	}

	switch mediaType {
	case "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: file part: %s", errs.ErrInvalidPayload, err)
		}
		return file, nil
	case "text/csv":
		return r.Body, nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidContentType, mediaType)
	}
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("%w: id must be numeric", errs.ErrInvalidRequest)
	}
	return id, nil
}

func checkJSONDecodeError(err error) error {
	var e *json.UnmarshalTypeError
	if errors.As(err, &e) {
		return fmt.Errorf("%w: %s must be of type %s, got %s",
			errs.ErrInvalidPayload, e.Field, e.Type, e.Value)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
	}

	return err
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *OrderController) ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, errs.ErrInvalidPayload) ||
		errors.Is(err, errs.ErrInvalidContentType) ||
		errors.Is(err, errs.ErrRequiredBodyParam):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound

	// Status Conflict (409).
	case errors.Is(err, errs.ErrDataConflict) ||
		errors.Is(err, errs.ErrAlreadyExists):
		code = http.StatusConflict

	// Status Too Many Requests (429).
	case errors.Is(err, errs.ErrRateLimit):
		code = http.StatusTooManyRequests
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	c.logger.Errorf("order controller [%d]: %s", code, err)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
