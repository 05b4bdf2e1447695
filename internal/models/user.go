package models

import "time"

type User struct {
	ID                 int64              `json:"id" bson:"_id"`
	Email              string             `json:"email" bson:"email"`
	Username           string             `json:"username" bson:"username"`
	FullName           string             `json:"fullName" bson:"full_name"`
	College            string             `json:"college" bson:"college"`
	Verified           bool               `json:"verified" bson:"verified"`
	VerificationStatus VerificationStatus `json:"verificationStatus" bson:"verification_status"`
	IDUploaded         bool               `json:"idUploaded" bson:"id_uploaded"`
	IDURL              *string            `json:"idUrl" bson:"id_url,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updated_at"`
}
