package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bunzstudio/storefront-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePreferences merges the given flags into the user's email
	// preferences and returns the updated document.
	UpdatePreferences(ctx context.Context, email string, prefs map[string]bool) (*models.User, error)
}

type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

var allowedPreferenceKeys = map[string]bool{
	"orderUpdates":   true,
	"marketing":      true,
	"supportUpdates": true,
	"securityAlerts": true,
	"newsletter":     true,
	"promotions":     true,
}

func (r *MongoUserRepository) UpdatePreferences(ctx context.Context, email string, prefs map[string]bool) (*models.User, error) {
	set := bson.M{}
	for key, val := range prefs {
		if !allowedPreferenceKeys[key] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPreference, key)
		}
		set["emailPreferences."+key] = val
	}
	if len(set) == 0 {
		return r.FindByEmail(ctx, email)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return &updated, nil
}
