package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), req.product(""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	query, ok := productQuery(r)
	if !ok {
		respondError(w, http.StatusBadRequest, errorBody{
			Code:    codeInvalidRequest,
			Message: "desc must be a boolean; page and page_size must be integers",
		})
		return
	}
	products, err := h.catalog.ListProducts(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), req.product(chi.URLParam(r, "productID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// productQuery разбирает name, sort, desc, page и page_size. Пустые значения
// оставляют умолчания, которые подставит каталог.
func productQuery(r *http.Request) (domain.ProductQuery, bool) {
	values := r.URL.Query()
	query := domain.ProductQuery{
		Name:   values.Get("name"),
		SortBy: domain.ProductSort(values.Get("sort")),
	}
	var err error
	if v := values.Get("desc"); v != "" {
		if query.Descending, err = strconv.ParseBool(v); err != nil {
			return domain.ProductQuery{}, false
		}
	}
	if v := values.Get("page"); v != "" {
		if query.Page, err = strconv.Atoi(v); err != nil {
			return domain.ProductQuery{}, false
		}
	}
	if v := values.Get("page_size"); v != "" {
		if query.PageSize, err = strconv.Atoi(v); err != nil {
			return domain.ProductQuery{}, false
		}
	}
	return query, true
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.catalog.CreateCustomer(r.Context(), domain.Customer{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.catalog.GetCustomer(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.catalog.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}
