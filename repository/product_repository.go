package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/bunzstudio/storefront-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductRepository is the catalog lookup and stock mutation surface used by
// the materializer.
type ProductRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByName(ctx context.Context, name string) (*models.Product, error)
	// DecrementStock atomically applies stock = max(0, stock-qty) and
	// returns the stock value from before the update so callers can detect
	// oversell.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int64) (int64, error)
}

type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{collection: db.Collection("products")}
}

func (r *MongoProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	return &product, nil
}

// FindByName resolves a product by catalog name, trying an exact match first
// and falling back to a case-insensitive one. Processor line descriptions
// are set from product names at session creation, so this is the reverse
// mapping.
func (r *MongoProductRepository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&product)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find product by name: %w", err)
	}

	ciFilter := bson.M{"name": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(name) + "$",
		Options: "i",
	}}
	err = r.collection.FindOne(ctx, ciFilter).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product by name: %w", err)
	}
	return &product, nil
}

// DecrementStock performs the bounded decrement as a single aggregation
// pipeline update, so concurrent materializations never lose updates and
// stock never goes negative.
func (r *MongoProductRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int64) (int64, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"stock": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$stock", qty}}}},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Product
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return before.Stock, nil
}
