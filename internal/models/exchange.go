package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exchange is a single call to the diagnosis model, stored in MongoDB.
// Detail may carry raw provider error text; it is never sent to clients.
type Exchange struct {
	ID                primitive.ObjectID `json:"id"                 bson:"_id,omitempty"`
	UserID            string             `json:"user_id"            bson:"user_id"`
	SearchID          string             `json:"search_id"          bson:"search_id,omitempty"`
	Model             string             `json:"model"              bson:"model"`
	Temperature       float32            `json:"temperature"        bson:"temperature"`
	SystemInstruction string             `json:"system_instruction" bson:"system_instruction"`
	Query             string             `json:"query"              bson:"query"`
	ImageCount        int                `json:"image_count"        bson:"image_count"`
	Outcome           string             `json:"outcome"            bson:"outcome"`
	Detail            string             `json:"-"                  bson:"detail,omitempty"`
	Diagnoses         []Diagnose         `json:"diagnoses"          bson:"diagnoses,omitempty"`
	LatencyMillis     int64              `json:"latency_ms"         bson:"latency_ms"`
	CreatedAt         time.Time          `json:"created_at"         bson:"created_at"`
}
