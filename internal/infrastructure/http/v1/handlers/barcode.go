package handlers

import (
	"github.com/gin-gonic/gin"

	"catalogue/internal/domain/barcode"
	"catalogue/internal/infrastructure/http/v1/dto"
)

// BarcodeHandler answers CMS barcode collision checks.
type BarcodeHandler struct {
	*BaseHandler
	detector *barcode.Detector
}

func NewBarcodeHandler(base *BaseHandler, detector *barcode.Detector) *BarcodeHandler {
	return &BarcodeHandler{BaseHandler: base, detector: detector}
}

// CatalogueCollisions handles POST /cms/barcodes/collisions.
func (h *BarcodeHandler) CatalogueCollisions(c *gin.Context) {
	var req dto.CatalogueCollisionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	exclude, ok := h.ParseOptionalID(c, "excludeProductId", req.ExcludeProductID)
	if !ok {
		return
	}

	sets, err := h.detector.FindCatalogueCollisions(c.Request.Context(), req.Barcodes, exclude)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewCollisionResponse(sets))
}

// OutletCollisions handles POST /cms/outlets/:outletId/barcodes/collisions.
func (h *BarcodeHandler) OutletCollisions(c *gin.Context) {
	var req dto.OutletCollisionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	exclude, ok := h.ParseOptionalID(c, "excludeStockItemId", req.ExcludeStockItemID)
	if !ok {
		return
	}

	sets, err := h.detector.FindOutletCollisions(c.Request.Context(), req.Barcodes, c.Param("outletId"), exclude)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewCollisionResponse(sets))
}
