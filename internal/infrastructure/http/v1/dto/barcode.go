package dto

import "catalogue/internal/domain/barcode"

type CatalogueCollisionRequest struct {
	Barcodes         []string `json:"barcodes" binding:"required,min=1,dive,required"`
	ExcludeProductID string   `json:"excludeProductId"`
}

type OutletCollisionRequest struct {
	Barcodes           []string `json:"barcodes" binding:"required,min=1,dive,required"`
	ExcludeStockItemID string   `json:"excludeStockItemId"`
}

// CollisionResponse lists colliding barcodes. An empty list means none.
type CollisionResponse struct {
	Collisions []barcode.CollisionSet `json:"collisions"`
}

func NewCollisionResponse(sets []barcode.CollisionSet) CollisionResponse {
	if sets == nil {
		sets = []barcode.CollisionSet{}
	}
	return CollisionResponse{Collisions: sets}
}
