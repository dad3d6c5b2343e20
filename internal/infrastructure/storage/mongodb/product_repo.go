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

// ProductRepo stores catalogue products.
type ProductRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewProductRepo(db *mongo.Database) *ProductRepo {
	return &ProductRepo{
		coll: db.Collection(catalogue.ProductsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *ProductRepo) Insert(ctx context.Context, p *catalogue.Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetProduct(ctx context.Context, productID id.ID) (*catalogue.Product, error) {
	var p catalogue.Product
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: productID}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalogue.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) GetProductsByIDs(ctx context.Context, ids []id.ID) ([]catalogue.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, nil)
}

// FindProductsByBarcode returns products declaring code, oldest first.
func (r *ProductRepo) FindProductsByBarcode(ctx context.Context, code string, excludeProductID *id.ID) ([]catalogue.Product, error) {
	filter := excludeID(bson.D{{Key: "barcodes", Value: code}}, excludeProductID)
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(barcode.LookupLimit).
		SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "slug", Value: 1}, {Key: "barcodes", Value: 1}})
	return r.find(ctx, filter, opts)
}

// FindProductIDsByBarcodes returns ids of products sharing any of codes.
func (r *ProductRepo) FindProductIDsByBarcodes(ctx context.Context, codes []string) ([]id.ID, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "barcodes", Value: bson.D{{Key: "$in", Value: codes}}}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find products by barcodes: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID id.ID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode product ids: %w", err)
	}
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// WriteAggregates replaces all per-city maps in one document update and returns the result.
func (r *ProductRepo) WriteAggregates(ctx context.Context, productID id.ID, aggs catalogue.CityAggregates, companyIDs []string) (*catalogue.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p catalogue.Product
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: productID}},
		aggregatesUpdate(aggs, companyIDs, r.now()),
		opts,
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalogue.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("write aggregates: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]catalogue.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	var out []catalogue.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

var (
	_ stock.ProductStore      = (*ProductRepo)(nil)
	_ pricefeed.ProductFinder = (*ProductRepo)(nil)
)

// Store joins the product and stock repositories for consumers that need both.
type Store struct {
	*ProductRepo
	*StockRepo
}

func NewStore(db *mongo.Database) *Store {
	return &Store{ProductRepo: NewProductRepo(db), StockRepo: NewStockRepo(db)}
}

var _ barcode.Store = (*Store)(nil)
