package models

import "time"

// Bucket is one S3-compatible bucket connection registered by a user.
// EncryptedSecretKey holds the cipher blob, never the plaintext secret.
type Bucket struct {
	ID                 string
	UserID             string
	Name               string
	BucketName         string
	Region             string
	AccessKeyID        string
	EncryptedSecretKey string
	IsDefault          bool
	CreatedAt          time.Time
}

// BucketSummary is the public view of a Bucket. It carries no credentials.
type BucketSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BucketName string    `json:"bucketName"`
	Region     string    `json:"region"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (b *Bucket) Summary() BucketSummary {
	return BucketSummary{
		ID:         b.ID,
		Name:       b.Name,
		BucketName: b.BucketName,
		Region:     b.Region,
		IsDefault:  b.IsDefault,
		CreatedAt:  b.CreatedAt,
	}
}

// NewBucket is the input for registering a connection. SecretKey is
// plaintext and is encrypted before it reaches the store.
type NewBucket struct {
	Name        string
	BucketName  string
	Region      string
	AccessKeyID string
	SecretKey   string
	IsDefault   bool
}

// SecretRecord is the minimal row shape used when re-encrypting secrets.
type SecretRecord struct {
	ID                 string
	EncryptedSecretKey string
}
