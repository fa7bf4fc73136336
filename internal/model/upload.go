package model

import "time"

// UploadReferenceResponse describes an uploaded protagonist reference image
type UploadReferenceResponse struct {
	ID        string    `json:"id"`
	FileURL   string    `json:"fileUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReferenceURLResponse carries a short-lived signed URL for a reference image
type ReferenceURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
