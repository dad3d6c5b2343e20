package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"catalogue/internal/core/id"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
)

// cityDoc renders one per-city map as a sub-document with keys in ascending order,
// so equal aggregates always serialize to the same bytes.
func cityDoc[V any](aggs catalogue.CityAggregates, pick func(catalogue.CityAggregate) V) bson.D {
	d := make(bson.D, 0, len(aggs))
	for _, city := range aggs.Cities() {
		d = append(d, bson.E{Key: string(city), Value: pick(aggs[city])})
	}
	return d
}

// aggregatesUpdate replaces every per-city map in a single $set.
func aggregatesUpdate(aggs catalogue.CityAggregates, companyIDs []string, now time.Time) bson.D {
	if companyIDs == nil {
		companyIDs = []string{}
	}
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "stockCountByCity", Value: cityDoc(aggs, func(a catalogue.CityAggregate) int64 { return int64(a.Count) })},
		{Key: "minPriceByCity", Value: cityDoc(aggs, func(a catalogue.CityAggregate) int64 { return int64(a.MinPrice) })},
		{Key: "maxPriceByCity", Value: cityDoc(aggs, func(a catalogue.CityAggregate) int64 { return int64(a.MaxPrice) })},
		{Key: "stockIdsByCity", Value: cityDoc(aggs, func(a catalogue.CityAggregate) []id.ID {
			ids := append([]id.ID(nil), a.StockItemIDs...)
			id.Sort(ids)
			return ids
		})},
		{Key: "companyIds", Value: companyIDs},
		{Key: "updatedAt", Value: now},
	}}}
}

// priceUpdate writes availability always and price fields only when the price changed.
// A changed price without a markdown removes oldPrice.
func priceUpdate(upd pricefeed.PriceUpdate, now time.Time) bson.D {
	set := bson.D{
		{Key: "available", Value: upd.Available},
		{Key: "updatedAt", Value: now},
	}
	if !upd.PriceChanged {
		return bson.D{{Key: "$set", Value: set}}
	}

	set = append(set,
		bson.E{Key: "price", Value: int64(upd.Price)},
		bson.E{Key: "discountedPercent", Value: upd.DiscountedPercent},
	)
	if upd.OldPrice != nil {
		set = append(set, bson.E{Key: "oldPrice", Value: int64(*upd.OldPrice)})
		return bson.D{{Key: "$set", Value: set}}
	}
	return bson.D{
		{Key: "$set", Value: set},
		{Key: "$unset", Value: bson.D{{Key: "oldPrice", Value: ""}}},
	}
}

func excludeID(filter bson.D, exclude *id.ID) bson.D {
	if exclude == nil || id.IsNil(*exclude) {
		return filter
	}
	return append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: *exclude}}})
}
