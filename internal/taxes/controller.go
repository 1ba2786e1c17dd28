package taxes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/tax"
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

// TaxService is the contract the HTTP layer consumes.
type TaxService interface {
	Create(ctx context.Context, rate int) ([]tax.Tax, error)
	List(ctx context.Context) ([]tax.Tax, error)
	DeleteByRate(ctx context.Context, rate int) error
}

var _ TaxService = (*Service)(nil)

type TaxController struct {
	service TaxService
	logger  logger.Logger
}

// NewTaxController registers the tax routes on the given router.
func NewTaxController(
	service TaxService, logger logger.Logger, options ChiServerOptions,
) *TaxController {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := &TaxController{
		service: service,
		logger:  logger,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/taxes", c.Create)
		r.Get(options.BaseURL+"/taxes", c.List)
		r.Delete(options.BaseURL+"/taxes/{rate}", c.Delete)
	})

	return c
}

type createTaxRequest struct {
	Rate int `json:"rate"`
}

// Create tax rate (POST /api/taxes). A single rate expands into six
// configuration rows.
func (c *TaxController) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createTaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
		}
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	created, err := c.service.Create(r.Context(), req.Rate)
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

// List unique tax rates (GET /api/taxes).
func (c *TaxController) List(w http.ResponseWriter, r *http.Request) {
	taxes, err := c.service.List(r.Context())
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(taxes); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}
}

// Delete all rows of a rate (DELETE /api/taxes/{rate}).
func (c *TaxController) Delete(w http.ResponseWriter, r *http.Request) {
	rate, err := strconv.Atoi(chi.URLParam(r, "rate"))
	if err != nil {
		c.ErrorHandlerFunc(w, r, fmt.Errorf("%w: rate must be numeric", errs.ErrInvalidRequest))
		return
	}

	if err = c.service.DeleteByRate(r.Context(), rate); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *TaxController) ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, errs.ErrInvalidPayload):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound

	// Status Conflict (409).
	case errors.Is(err, errs.ErrAlreadyExists):
		code = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	c.logger.Errorf("tax controller [%d]: %s", code, err)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
