package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"catalogue/internal/core/id"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
)

func TestAggregatesUpdate_ByteIdentical(t *testing.T) {
	a, b, c := id.New(), id.New(), id.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	build := func() catalogue.CityAggregates {
		return catalogue.CityAggregates{
			"spb": {Count: 1, MinPrice: 500, MaxPrice: 500, StockItemIDs: []id.ID{c}},
			"msk": {Count: 2, MinPrice: 100, MaxPrice: 300, StockItemIDs: []id.ID{b, a}},
			"ekb": {Count: 0},
		}
	}

	first, err := bson.Marshal(aggregatesUpdate(build(), []string{"c1"}, now))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := bson.Marshal(aggregatesUpdate(build(), []string{"c1"}, now))
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestAggregatesUpdate_KeyOrder(t *testing.T) {
	aggs := catalogue.CityAggregates{
		"spb": {Count: 1, MinPrice: 5, MaxPrice: 5},
		"msk": {Count: 3, MinPrice: 1, MaxPrice: 9},
	}
	doc := aggregatesUpdate(aggs, nil, time.Time{})
	set := doc[0].Value.(bson.D)

	assert.Equal(t, "stockCountByCity", set[0].Key)
	assert.Equal(t, bson.D{{Key: "msk", Value: int64(3)}, {Key: "spb", Value: int64(1)}}, set[0].Value)
	assert.Equal(t, bson.D{{Key: "msk", Value: int64(1)}, {Key: "spb", Value: int64(5)}}, set[1].Value)
	assert.Equal(t, bson.D{{Key: "msk", Value: int64(9)}, {Key: "spb", Value: int64(5)}}, set[2].Value)
	assert.Equal(t, []string{}, set[4].Value)
}

func TestPriceUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := types.MinorUnits(10000)

	tests := []struct {
		name string
		upd  pricefeed.PriceUpdate
		want bson.D
	}{
		{
			name: "availability only",
			upd:  pricefeed.PriceUpdate{Price: 8000, Available: 3},
			want: bson.D{{Key: "$set", Value: bson.D{
				{Key: "available", Value: int64(3)},
				{Key: "updatedAt", Value: now},
			}}},
		},
		{
			name: "markdown records old price",
			upd:  pricefeed.PriceUpdate{Price: 8000, Available: 1, PriceChanged: true, OldPrice: &old, DiscountedPercent: 20},
			want: bson.D{{Key: "$set", Value: bson.D{
				{Key: "available", Value: int64(1)},
				{Key: "updatedAt", Value: now},
				{Key: "price", Value: int64(8000)},
				{Key: "discountedPercent", Value: 20},
				{Key: "oldPrice", Value: int64(10000)},
			}}},
		},
		{
			name: "rise clears old price",
			upd:  pricefeed.PriceUpdate{Price: 12000, Available: 1, PriceChanged: true},
			want: bson.D{
				{Key: "$set", Value: bson.D{
					{Key: "available", Value: int64(1)},
					{Key: "updatedAt", Value: now},
					{Key: "price", Value: int64(12000)},
					{Key: "discountedPercent", Value: 0},
				}},
				{Key: "$unset", Value: bson.D{{Key: "oldPrice", Value: ""}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, priceUpdate(tt.upd, now))
		})
	}
}

func TestExcludeID(t *testing.T) {
	base := bson.D{{Key: "barcodes", Value: "1"}}
	assert.Equal(t, base, excludeID(base, nil))

	x := id.New()
	got := excludeID(bson.D{{Key: "barcodes", Value: "1"}}, &x)
	assert.Equal(t, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: x}}}, got[1])
}
