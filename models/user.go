package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// EmailPreferences are the buyer's opt-in flags. OrderUpdates gates the
// order confirmation email.
type EmailPreferences struct {
	OrderUpdates   bool `bson:"orderUpdates" json:"order_updates"`
	Marketing      bool `bson:"marketing" json:"marketing"`
	SupportUpdates bool `bson:"supportUpdates" json:"support_updates"`
	SecurityAlerts bool `bson:"securityAlerts" json:"security_alerts"`
	Newsletter     bool `bson:"newsletter" json:"newsletter"`
	Promotions     bool `bson:"promotions" json:"promotions"`
}

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username         string             `bson:"username" json:"username"`
	Email            string             `bson:"email" json:"email"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Country          string             `bson:"country,omitempty" json:"country,omitempty"`
	EmailPreferences EmailPreferences   `bson:"emailPreferences" json:"email_preferences"`
	EmailVerified    bool               `bson:"emailVerified" json:"email_verified"`
}

// DefaultEmailPreferences mirrors the signup defaults: transactional mail on,
// marketing off.
func DefaultEmailPreferences() EmailPreferences {
	return EmailPreferences{
		OrderUpdates:   true,
		SupportUpdates: true,
		SecurityAlerts: true,
	}
}
