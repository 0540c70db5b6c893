// Package models defines server-side data models. User and Bucket are
// persisted; ObjectEntry and ShareGrant only live for one request.
package models

import "time"

type User struct {
	ID          string
	Email       string
	Name        string
	Salt        []byte
	Verifier    []byte
	BucketLimit int
	CreatedAt   time.Time
}

// Profile is the account summary shown to the signed-in user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	BucketLimit int       `json:"bucketLimit"`
	BucketCount int       `json:"bucketCount"`
	HasS3Config bool      `json:"hasS3Config"`
}
