package http

import (
	"net/http"

	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type bucketListResponse struct {
	Buckets []models.BucketSummary `json:"buckets"`
}

func (h *Handler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	list, err := h.buckets.List(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, bucketListResponse{Buckets: list})
}

type addBucketRequest struct {
	Name            string `json:"name"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
	BucketName      string `json:"bucketName"`
	IsDefault       bool   `json:"isDefault"`
}

type addBucketResponse struct {
	Message string                `json:"message"`
	Bucket  *models.BucketSummary `json:"bucket"`
}

func (h *Handler) AddBucket(w http.ResponseWriter, r *http.Request) {
	var req addBucketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.buckets.Add(r.Context(), userID(r), models.NewBucket{
		Name:        req.Name,
		BucketName:  req.BucketName,
		Region:      req.Region,
		AccessKeyID: req.AccessKeyID,
		SecretKey:   req.SecretAccessKey,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, addBucketResponse{Message: "Bucket added successfully", Bucket: b})
}

func (h *Handler) RemoveBucket(w http.ResponseWriter, r *http.Request) {
	if err := h.buckets.Remove(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, messageResponse{Message: "Bucket removed successfully"})
}

func (h *Handler) SetDefaultBucket(w http.ResponseWriter, r *http.Request) {
	if err := h.buckets.SetDefault(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, messageResponse{Message: "Default bucket updated successfully"})
}
