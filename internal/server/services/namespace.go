package services

import (
	"bytes"
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
)

const (
	Delimiter = "/"

	// MaxKeysPerListing caps a listing at one backend page. Keys past it
	// are not returned.
	MaxKeysPerListing = 1000

	FolderContentType = "application/x-directory"
	FolderType        = "folder"
	DefaultMimeType   = "application/octet-stream"
)

const (
	FilterAll       = "all"
	FilterImages    = "images"
	FilterDocuments = "documents"
)

var folderNameRe = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",

	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",

	"zip": "application/zip",
	"rar": "application/x-rar-compressed",
}

// MimeType classifies a file name by its lowercased extension.
func MimeType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return DefaultMimeType
}

// PrefixForPath turns a UI folder path ("docs", "docs/") into a listing
// prefix ("docs/"). The root path maps to "".
func PrefixForPath(p string) string {
	p = strings.TrimRight(p, Delimiter)
	if p == "" {
		return ""
	}
	return p + Delimiter
}

// Filter narrows the files of a listing. Folders are never filtered out.
// An unknown Type behaves like FilterAll.
type Filter struct {
	Type   string
	Search string
}

func (f Filter) matches(name, mimeType string) bool {
	isImage := strings.HasPrefix(mimeType, "image/")

	switch f.Type {
	case FilterImages:
		if !isImage {
			return false
		}
	case FilterDocuments:
		if isImage {
			return false
		}
	}

	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.Search))
}

// ObjectNamespace presents a bucket's flat key space as folders and files.
// It keeps no state between calls.
type ObjectNamespace struct {
	logger logging.Logger
	now    func() time.Time
}

func NewObjectNamespace(logger logging.Logger) *ObjectNamespace {
	return &ObjectNamespace{
		logger: logger.With("module", "namespace"),
		now:    time.Now,
	}
}

// List returns the immediate children of prefix: folders first, then the
// files that pass filter.
func (n *ObjectNamespace) List(ctx context.Context, backend storage.Backend, prefix string, filter Filter) ([]models.ObjectEntry, error) {
	listing, err := backend.List(ctx, storage.ListInput{
		Prefix:    prefix,
		Delimiter: Delimiter,
		MaxKeys:   MaxKeysPerListing,
	})
	if err != nil {
		return nil, err
	}

	if listing.Truncated {
		n.logger.Warn(ctx, "listing truncated", "prefix", prefix, "max_keys", MaxKeysPerListing)
	}

	now := n.now()
	entries := make([]models.ObjectEntry, 0, len(listing.CommonPrefixes)+len(listing.Objects))

	for _, p := range listing.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), Delimiter)
		if name == "" {
			continue
		}
		entries = append(entries, models.ObjectEntry{
			Key:          p,
			Name:         name,
			LastModified: now,
			MimeType:     FolderType,
			IsFolder:     true,
		})
	}

	for _, o := range listing.Objects {
		// folder markers
		if o.Key == prefix || strings.HasSuffix(o.Key, Delimiter) {
			continue
		}

		name := strings.TrimPrefix(o.Key, prefix)
		mimeType := MimeType(name)
		if !filter.matches(name, mimeType) {
			continue
		}

		modified := o.LastModified
		if modified.IsZero() {
			modified = now
		}

		entries = append(entries, models.ObjectEntry{
			Key:          o.Key,
			Name:         name,
			Size:         o.Size,
			LastModified: modified,
			MimeType:     mimeType,
		})
	}

	return entries, nil
}

// FolderKey returns the marker key for name under parentPath.
func FolderKey(parentPath, name string) string {
	return PrefixForPath(parentPath) + name + Delimiter
}

// CreateFolder writes an empty marker object so the folder shows up in
// listings. Creating an existing folder overwrites its marker and succeeds.
func (n *ObjectNamespace) CreateFolder(ctx context.Context, backend storage.Backend, parentPath, name string) (string, error) {
	if !folderNameRe.MatchString(name) {
		return "", common.ErrInvalidName
	}

	key := FolderKey(parentPath, name)

	if err := backend.Put(ctx, key, bytes.NewReader(nil), 0, FolderContentType); err != nil {
		return "", err
	}

	n.logger.Debug(ctx, "folder created", "key", key)
	return key, nil
}
