package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Width       string             `bson:"width,omitempty" json:"width,omitempty"`
	Height      string             `bson:"height,omitempty" json:"height,omitempty"`
	Material    string             `bson:"material,omitempty" json:"material,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Image       string             `bson:"image" json:"image"`
	Category    string             `bson:"category" json:"category"`
	Stock       int64              `bson:"stock" json:"stock"`
	Rating      float64            `bson:"rating" json:"rating"`
	NumReviews  int64              `bson:"numReviews" json:"num_reviews"`
}
