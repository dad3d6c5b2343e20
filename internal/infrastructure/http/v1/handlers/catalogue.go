package handlers

import (
	"github.com/gin-gonic/gin"

	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/filter"
)

// CatalogueHandler serves the storefront listing.
type CatalogueHandler struct {
	*BaseHandler
	service *catalogue.Service
}

func NewCatalogueHandler(base *BaseHandler, service *catalogue.Service) *CatalogueHandler {
	return &CatalogueHandler{BaseHandler: base, service: service}
}

// List handles GET /catalogue/*filter. Malformed filter segments and pagination
// parameters fall back to defaults instead of failing the request.
func (h *CatalogueHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	scope, err := tenant.GetScope(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	in := catalogue.PaginationInput{
		Page:          h.ParseIntQuery(c, "page", 0),
		Limit:         h.ParseIntQuery(c, "limit", 0),
		SortBy:        c.Query("sortBy"),
		SortDirection: c.Query("sortDirection"),
	}

	page, err := h.service.List(ctx, filter.SplitPath(c.Param("filter")), in, scope)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}
