package handlers

import (
	"github.com/gin-gonic/gin"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/id"
	"catalogue/internal/domain/stock"
	"catalogue/internal/infrastructure/http/v1/dto"
)

// StockHandler exposes CMS stock mutations.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Admit handles POST /cms/stock.
func (h *StockHandler) Admit(c *gin.Context) {
	var req dto.AdmitStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId").WithDetail("productId", req.ProductID))
		return
	}

	item, err := h.service.Admit(c.Request.Context(), req.ToInput(productID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockItem(item))
}

// Archive handles POST /cms/stock/:id/archive.
func (h *StockHandler) Archive(c *gin.Context) {
	stockItemID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Archive(c.Request.Context(), stockItemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockItem(item))
}

// Recompute handles POST /cms/products/:id/recompute.
func (h *StockHandler) Recompute(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	product, err := h.service.Recompute(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProductAggregates(product))
}

// DeactivateOutlet handles POST /cms/outlets/:outletId/deactivate.
func (h *StockHandler) DeactivateOutlet(c *gin.Context) {
	res, err := h.service.DeactivateOutlet(c.Request.Context(), c.Param("outletId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDeactivation(res))
}
