package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bunzstudio/storefront-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Insert persists a new order. Returns ErrDuplicateOrder when an order
	// for the same checkout session already exists; the unique index is the
	// arbiter, not an application-level existence check.
	Insert(ctx context.Context, order *models.Order) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID, status string, page, limit int) ([]models.Order, int64, error)
	UserStats(ctx context.Context, userID primitive.ObjectID) (*models.UserOrderStats, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Order, error)
}

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{collection: db.Collection("orders")}
}

func (r *MongoOrderRepository) Insert(ctx context.Context, order *models.Order) error {
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid
	}
	return nil
}

func (r *MongoOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, bson.M{"metadata.session_id": sessionID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order by session: %w", err)
	}
	return &order, nil
}

// FindByUser retrieves a user's orders, newest first, with optional status
// filtering and pagination.
func (r *MongoOrderRepository) FindByUser(ctx context.Context, userID primitive.ObjectID, status string, page, limit int) ([]models.Order, int64, error) {
	filter := bson.M{"user": userID}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "datePlaced", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

// UserStats aggregates order count and spend for a user. Totals come from
// the stored total_amount, which was derived from charged amounts at
// materialization time.
func (r *MongoOrderRepository) UserStats(ctx context.Context, userID primitive.ObjectID) (*models.UserOrderStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":               nil,
			"totalOrders":       bson.M{"$sum": 1},
			"totalSpent":        bson.M{"$sum": "$total_amount"},
			"averageOrderValue": bson.M{"$avg": "$total_amount"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate user order stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.UserOrderStats
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode user order stats: %w", err)
	}
	if len(results) == 0 {
		return &models.UserOrderStats{}, nil
	}
	return &results[0], nil
}

func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Order
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &updated, nil
}
