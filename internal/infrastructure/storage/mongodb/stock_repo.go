package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"catalogue/internal/core/id"
	"catalogue/internal/domain/barcode"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
	"catalogue/internal/domain/stock"
)

// StockRepo stores outlet stock rows ("shop products").
type StockRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewStockRepo(db *mongo.Database) *StockRepo {
	return &StockRepo{
		coll: db.Collection(catalogue.StockCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func live(filter bson.D) bson.D {
	return append(filter, bson.E{Key: "archived", Value: false})
}

func (r *StockRepo) Insert(ctx context.Context, item *catalogue.StockItem) error {
	if id.IsNil(item.ID) {
		item.ID = id.New()
	}
	if _, err := r.coll.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

func (r *StockRepo) ListActiveByProduct(ctx context.Context, productID id.ID) ([]catalogue.StockItem, error) {
	return r.find(ctx, live(bson.D{{Key: "productId", Value: productID}}), nil)
}

// Archive marks the row archived. An already archived row is returned unchanged.
func (r *StockRepo) Archive(ctx context.Context, stockItemID id.ID) (*catalogue.StockItem, error) {
	var item catalogue.StockItem
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: stockItemID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "archived", Value: true},
			{Key: "updatedAt", Value: r.now()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalogue.ErrStockItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive stock item: %w", err)
	}
	return &item, nil
}

// ArchiveByOutlet archives every live row of the outlet and reports the products
// that had one. Rows admitted concurrently may survive and are picked up on retry.
func (r *StockRepo) ArchiveByOutlet(ctx context.Context, outletID string) (int64, []id.ID, error) {
	filter := live(bson.D{{Key: "outletId", Value: outletID}})

	raw, err := r.coll.Distinct(ctx, "productId", filter)
	if err != nil {
		return 0, nil, fmt.Errorf("distinct outlet products: %w", err)
	}
	productIDs := make([]id.ID, 0, len(raw))
	for _, v := range raw {
		if pid, ok := v.(id.ID); ok {
			productIDs = append(productIDs, pid)
		}
	}

	res, err := r.coll.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "archived", Value: true},
		{Key: "updatedAt", Value: r.now()},
	}}})
	if err != nil {
		return 0, nil, fmt.Errorf("archive outlet stock: %w", err)
	}
	return res.ModifiedCount, productIDs, nil
}

// FindOutletStockByBarcode returns live rows of one outlet declaring code.
func (r *StockRepo) FindOutletStockByBarcode(ctx context.Context, outletID, code string, excludeStockItemID *id.ID) ([]catalogue.StockItem, error) {
	filter := excludeID(live(bson.D{
		{Key: "outletId", Value: outletID},
		{Key: "barcodes", Value: code},
	}), excludeStockItemID)
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(barcode.LookupLimit)
	return r.find(ctx, filter, opts)
}

// FindOutletRows returns live rows of the outlet for productIDs sharing any of codes.
func (r *StockRepo) FindOutletRows(ctx context.Context, outletID string, productIDs []id.ID, codes []string) ([]catalogue.StockItem, error) {
	if len(productIDs) == 0 || len(codes) == 0 {
		return nil, nil
	}
	filter := live(bson.D{
		{Key: "outletId", Value: outletID},
		{Key: "productId", Value: bson.D{{Key: "$in", Value: productIDs}}},
		{Key: "barcodes", Value: bson.D{{Key: "$in", Value: codes}}},
	})
	return r.find(ctx, filter, nil)
}

// UpdatePrice applies a feed update to one live row.
func (r *StockRepo) UpdatePrice(ctx context.Context, stockItemID id.ID, upd pricefeed.PriceUpdate) error {
	res, err := r.coll.UpdateOne(ctx, live(bson.D{{Key: "_id", Value: stockItemID}}), priceUpdate(upd, r.now()))
	if err != nil {
		return fmt.Errorf("update stock price: %w", err)
	}
	if res.MatchedCount == 0 {
		return catalogue.ErrStockItemNotFound
	}
	return nil
}

func (r *StockRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]catalogue.StockItem, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find stock items: %w", err)
	}
	defer cur.Close(ctx)

	var out []catalogue.StockItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode stock items: %w", err)
	}
	return out, nil
}

var (
	_ stock.StockStore      = (*StockRepo)(nil)
	_ pricefeed.StockWriter = (*StockRepo)(nil)
)
