package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/services"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
	"github.com/dustin/go-humanize"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to temp files.
const multipartMemory = 8 << 20

// fileEntry adds a display size to a listing row.
type fileEntry struct {
	models.ObjectEntry
	SizeHuman string `json:"sizeHuman,omitempty"`
}

func newFileEntry(e models.ObjectEntry) fileEntry {
	out := fileEntry{ObjectEntry: e}
	if !e.IsFolder {
		out.SizeHuman = humanize.Bytes(uint64(e.Size))
	}
	return out
}

type fileListResponse struct {
	Files []fileEntry `json:"files"`
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filterType := q.Get("type")
	if filterType == "" {
		filterType = services.FilterAll
	}

	entries, err := h.files.List(r.Context(), userID(r), q.Get("bucketId"), q.Get("path"), services.Filter{
		Type:   filterType,
		Search: q.Get("search"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	files := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		files = append(files, newFileEntry(e))
	}

	WriteJSON(w, http.StatusOK, fileListResponse{Files: files})
}

type createFolderRequest struct {
	FolderName string `json:"folderName"`
	ParentPath string `json:"parentPath"`
	BucketID   string `json:"bucketId"`
}

type createFolderResponse struct {
	Message    string `json:"message"`
	FolderPath string `json:"folderPath"`
}

func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	key, err := h.files.CreateFolder(r.Context(), userID(r), req.BucketID, req.ParentPath, req.FolderName)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, createFolderResponse{Message: "Folder created successfully", FolderPath: key})
}

// parseTTL accepts a Go duration ("1h30m") or a number of seconds. Empty
// means the server default.
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return 0, common.NewValidationError("ttl", "must be a duration or a number of seconds")
}

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ttl, err := parseTTL(q.Get("ttl"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	grant, err := h.files.Share(r.Context(), userID(r), q.Get("bucketId"), q.Get("key"), ttl)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, grant)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	d, err := h.files.Download(r.Context(), userID(r), q.Get("bucketId"), q.Get("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer d.Body.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	if d.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		h.logger.Warn(r.Context(), "download interrupted", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
}

type uploadResponse struct {
	Message string    `json:"message"`
	File    fileEntry `json:"file"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		// room for the multipart envelope around the file
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, common.NewValidationError("file", "is too large"))
			return
		}
		h.fail(w, r, common.NewValidationError("body", "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, common.NewValidationError("file", "is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == services.DefaultMimeType {
		contentType = ""
	}

	entry, err := h.files.Upload(r.Context(), userID(r), r.FormValue("bucketId"), r.FormValue("path"),
		header.Filename, file, header.Size, contentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, uploadResponse{Message: "File uploaded successfully", File: newFileEntry(*entry)})
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if err := h.files.Delete(r.Context(), userID(r), q.Get("bucketId"), q.Get("key")); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

type testConnectionRequest struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
	BucketName      string `json:"bucketName"`
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err := h.files.TestConnection(r.Context(), storage.Credentials{
		AccessKeyID: req.AccessKeyID,
		SecretKey:   req.SecretAccessKey,
		Region:      req.Region,
		BucketName:  req.BucketName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, messageResponse{Message: "Connection successful!"})
}
