package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/NazarZnet/E-commerce/internal/domain"
	"github.com/NazarZnet/E-commerce/internal/filter"
	"github.com/NazarZnet/E-commerce/internal/service"
)

// Storefront is the set of use cases served over HTTP and gRPC.
// *service.Storefront satisfies it.
type Storefront interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	Filters() filter.FilterState
	UpdateFilters(ctx context.Context, patch filter.Patch) (filter.FilterState, error)
	SelectCategory(ctx context.Context, name *string) (filter.FilterState, error)
	ResetFilters() filter.FilterState
	Schema(ctx context.Context, category string) (*service.Schema, error)
	ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
	SimilarProducts(ctx context.Context, slug string, page, pageSize int) (*service.ProductPage, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	storefront Storefront
	validate   *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(sf Storefront) *HTTPHandler {
	return &HTTPHandler{
		storefront: sf,
		validate:   validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// respondWithServiceError maps storefront errors to HTTP status codes.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrCategoryNotFound), errors.Is(err, service.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPage), errors.Is(err, service.ErrInvalidOrdering):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// --- Catalog Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.storefront.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

// ProductListInput holds the validated query parameters of the product listing.
type ProductListInput struct {
	Search   string `validate:"max=255"`
	Category string `validate:"max=255"`
	Ordering string `validate:"omitempty,oneof=price -price created_at -created_at updated_at -updated_at"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0"`
	Featured *bool
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ProductListInput{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Ordering: q.Get("ordering"),
	}

	var ok bool
	if input.Page, ok = intParam(w, q.Get("page"), "page"); !ok {
		return
	}
	if input.PageSize, ok = intParam(w, q.Get("page_size"), "page_size"); !ok {
		return
	}
	if raw := q.Get("featured"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid featured value: must be true or false")
			return
		}
		input.Featured = &b
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	page, err := h.storefront.ListProducts(r.Context(), service.ProductQuery{
		Search:       input.Search,
		Featured:     input.Featured,
		CategorySlug: input.Category,
		Ordering:     input.Ordering,
		Page:         input.Page,
		PageSize:     input.PageSize,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	product, err := h.storefront.GetProduct(r.Context(), slug)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	q := r.URL.Query()
	page, ok := intParam(w, q.Get("page"), "page")
	if !ok {
		return
	}
	pageSize, ok := intParam(w, q.Get("page_size"), "page_size")
	if !ok {
		return
	}

	result, err := h.storefront.SimilarProducts(r.Context(), slug, page, pageSize)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve similar products")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query parameter. Missing means 0.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" format")
		return 0, false
	}
	return v, true
}

// --- Filter Handlers ---

func (h *HTTPHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.storefront.Filters())
}

func (h *HTTPHandler) PatchFilters(w http.ResponseWriter, r *http.Request) {
	var patch filter.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if msg := validatePatch(h.validate, patch); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	state, err := h.storefront.UpdateFilters(r.Context(), patch)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update filters")
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

// PriceBoundsInput carries the price fields of a filter patch for validation.
type PriceBoundsInput struct {
	MinPrice *float64 `validate:"omitempty,gte=0"`
	MaxPrice *float64 `validate:"omitempty,gte=0"`
}

// validatePatch returns a client-facing message for an unacceptable patch, or "".
func validatePatch(v *validator.Validate, p filter.Patch) string {
	in := PriceBoundsInput{MinPrice: p.MinPrice.Value, MaxPrice: p.MaxPrice.Value}
	if err := v.Struct(in); err != nil {
		return "Validation failed: " + err.Error()
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return "minPrice cannot exceed maxPrice"
	}
	return ""
}

// CategorySelectInput is the body of PUT /filters/category. A null category selects all categories.
type CategorySelectInput struct {
	Category *string `json:"category" validate:"omitempty,min=1,max=255"`
}

func (h *HTTPHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var input CategorySelectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	state, err := h.storefront.SelectCategory(r.Context(), input.Category)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to select category")
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

func (h *HTTPHandler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.storefront.ResetFilters())
}

func (h *HTTPHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.storefront.Schema(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to build filter schema")
		return
	}
	respondWithJSON(w, http.StatusOK, schema)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/categories", h.ListCategories)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.GetProduct)
			r.Get("/similar", h.SimilarProducts)
		})
	})

	r.Route("/api/v1/filters", func(r chi.Router) {
		r.Get("/", h.GetFilters)
		r.Patch("/", h.PatchFilters)
		r.Delete("/", h.ResetFilters)
		r.Put("/category", h.SelectCategory)
		r.Get("/schema", h.GetSchema)
	})
}
