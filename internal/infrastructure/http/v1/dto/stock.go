package dto

import (
	"catalogue/internal/core/id"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/stock"
)

// AdmitStockRequest admits a product to an outlet. Price is in major units.
type AdmitStockRequest struct {
	ProductID string      `json:"productId" binding:"required"`
	OutletID  string      `json:"outletId" binding:"required,uuid"`
	Price     types.Money `json:"price"`
	Available int64       `json:"available" binding:"gte=0"`
	Barcodes  []string    `json:"barcodes"`
}

// ToInput converts the request. The product id must already be parsed.
func (r AdmitStockRequest) ToInput(productID id.ID) stock.AdmitInput {
	return stock.AdmitInput{
		ProductID: productID,
		OutletID:  r.OutletID,
		Price:     types.FromMoney(r.Price),
		Available: r.Available,
		Barcodes:  r.Barcodes,
	}
}

type StockItemResponse struct {
	ID                string       `json:"id"`
	ProductID         string       `json:"productId"`
	OutletID          string       `json:"outletId"`
	City              string       `json:"city"`
	Barcodes          []string     `json:"barcodes"`
	Price             types.Money  `json:"price"`
	OldPrice          *types.Money `json:"oldPrice,omitempty"`
	DiscountedPercent int          `json:"discountedPercent"`
	Available         int64        `json:"available"`
	Archived          bool         `json:"archived"`
}

func FromStockItem(s *catalogue.StockItem) StockItemResponse {
	resp := StockItemResponse{
		ID:                s.ID.Hex(),
		ProductID:         s.ProductID.Hex(),
		OutletID:          s.OutletID,
		City:              s.City.String(),
		Barcodes:          s.Barcodes,
		Price:             s.Price.Money(),
		DiscountedPercent: s.DiscountedPercent,
		Available:         s.Available,
		Archived:          s.Archived,
	}
	if s.OldPrice != nil {
		old := s.OldPrice.Money()
		resp.OldPrice = &old
	}
	return resp
}

// CityAggregateResponse is one city's stock summary of a product.
type CityAggregateResponse struct {
	City     string      `json:"city"`
	Count    int         `json:"count"`
	MinPrice types.Money `json:"minPrice"`
	MaxPrice types.Money `json:"maxPrice"`
}

type ProductAggregatesResponse struct {
	ID         string                  `json:"id"`
	CompanyIDs []string                `json:"companyIds"`
	Cities     []CityAggregateResponse `json:"cities"`
}

func FromProductAggregates(p *catalogue.Product) ProductAggregatesResponse {
	aggs := p.Aggregates()
	resp := ProductAggregatesResponse{
		ID:         p.ID.Hex(),
		CompanyIDs: p.CompanyIDs,
		Cities:     make([]CityAggregateResponse, 0, len(aggs)),
	}
	if resp.CompanyIDs == nil {
		resp.CompanyIDs = []string{}
	}
	for _, city := range aggs.Cities() {
		a := aggs[city]
		resp.Cities = append(resp.Cities, CityAggregateResponse{
			City:     city.String(),
			Count:    a.Count,
			MinPrice: a.MinPrice.Money(),
			MaxPrice: a.MaxPrice.Money(),
		})
	}
	return resp
}

type DeactivationResponse struct {
	OutletID     string   `json:"outletId"`
	ArchivedRows int64    `json:"archivedRows"`
	Products     []string `json:"products"`
}

func FromDeactivation(r *stock.DeactivationResult) DeactivationResponse {
	resp := DeactivationResponse{ArchivedRows: r.ArchivedRows, Products: make([]string, 0, len(r.Products))}
	if r.Outlet != nil {
		resp.OutletID = r.Outlet.ID
	}
	for _, p := range r.Products {
		resp.Products = append(resp.Products, p.Hex())
	}
	return resp
}
