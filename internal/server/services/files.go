// Package services holds the business operations of filevault. Services take
// their collaborators (repositories, session resolver, blob store, queue)
// explicitly; there is no shared instance.
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"

	"filevault/internal/common"
	"filevault/internal/logging"
	"filevault/internal/server/blob"
	"filevault/internal/server/models"
	"filevault/internal/server/queue"
	"filevault/internal/server/repositories/files"
	"filevault/internal/server/sessions"
)

// UploadRequest carries the client's upload parameters. Data is the base64
// payload, required unless Type is folder.
type UploadRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parentId"`
	IsPublic bool   `json:"isPublic"`
	Data     string `json:"data"`
}

// Content is an opened byte stream of a stored blob plus its content type.
// The caller owns Body and must close it.
type Content struct {
	Body        io.ReadCloser
	ContentType string
}

// FileService implements the user-facing file operations.
type FileService struct {
	files    files.Repository
	resolver sessions.Resolver
	blobs    blob.Store
	queue    queue.Queue
	logger   logging.Logger
}

func NewFileService(repo files.Repository, resolver sessions.Resolver, blobs blob.Store, q queue.Queue, logger logging.Logger) *FileService {
	return &FileService{
		files:    repo,
		resolver: resolver,
		blobs:    blobs,
		queue:    q,
		logger:   logger.With("module", "file_service"),
	}
}

// Upload validates req, persists the blob (for non-folders) and the metadata
// document, and enqueues a thumbnail job for images. Validation is complete
// before any side effect; the blob is written before the metadata references
// it, and the job is enqueued only after the metadata write succeeded.
func (s *FileService) Upload(ctx context.Context, token string, req *UploadRequest) (*models.Projection, error) {

	userID, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	if req.Name == "" {
		return nil, common.NewValidationError("Missing name")
	}
	if !models.ValidType(req.Type) {
		return nil, common.NewValidationError("Missing type")
	}
	if req.Type != models.TypeFolder && req.Data == "" {
		return nil, common.NewValidationError("Missing data")
	}

	parentID := req.ParentID
	if parentID == "" {
		parentID = models.RootParentID
	}
	if parentID != models.RootParentID {
		parent, err := s.files.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.NewValidationError("Parent not found")
			}
			return nil, fmt.Errorf("parent lookup: %w", err)
		}
		if !parent.IsFolder() {
			return nil, common.NewValidationError("Parent is not a folder")
		}
	}

	file := &models.File{
		OwnerID:  userID,
		Name:     req.Name,
		Type:     req.Type,
		IsPublic: req.IsPublic,
		ParentID: parentID,
	}

	if req.Type != models.TypeFolder {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, common.NewValidationError("Missing data")
		}

		key := blob.NewKey()
		if err := s.blobs.Save(ctx, key, data); err != nil {
			return nil, fmt.Errorf("blob write: %w", err)
		}
		file.StorageKey = key
	}

	created, err := s.files.Create(ctx, file)
	if err != nil {
		// The blob was written but nothing references it. Best-effort
		// cleanup keeps the store from accumulating orphans; a cleanup
		// failure is only logged because the insert error is the one the
		// caller needs.
		if file.StorageKey != "" {
			if derr := s.blobs.Delete(ctx, file.StorageKey); derr != nil {
				s.logger.Error(ctx, "orphan blob cleanup failed", "key", file.StorageKey, "error", derr)
			}
		}
		return nil, fmt.Errorf("metadata write: %w", err)
	}

	if created.Type == models.TypeImage {
		job := queue.Job{UserID: created.OwnerID, FileID: created.ID}
		if err := s.queue.Enqueue(ctx, queue.ThumbnailQueue, job); err != nil {
			// Fire-and-forget: the upload already succeeded, so a queue
			// fault must not fail the request. The derivative set stays
			// incomplete until the job is re-enqueued.
			s.logger.Error(ctx, "thumbnail job enqueue failed", "fileId", created.ID, "error", err)
		}
	}

	return created.Project(), nil
}

// Get returns the file with the given id when it belongs to the caller.
// Missing and not-owned are indistinguishable.
func (s *FileService) Get(ctx context.Context, token, fileID string) (*models.File, error) {

	userID, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	file, err := s.files.GetByIDAndOwner(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("file lookup: %w", err)
	}

	return file, nil
}

// List returns one page (at most files.PageSize entities) of the caller's
// files under parentID. Listing is owner-scoped only: visibility is
// deliberately not consulted here, in contrast to Open.
func (s *FileService) List(ctx context.Context, token, parentID string, page int) ([]*models.File, error) {

	userID, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	if parentID == "" {
		parentID = models.RootParentID
	}
	if page < 0 {
		page = 0
	}

	list, err := s.files.ListByOwnerAndParent(ctx, userID, parentID, page)
	if err != nil {
		return nil, fmt.Errorf("file listing: %w", err)
	}

	if list == nil {
		list = []*models.File{}
	}
	return list, nil
}

// SetPublic atomically sets the visibility flag of the caller's file and
// returns the updated document. Store faults surface as ErrInternal.
func (s *FileService) SetPublic(ctx context.Context, token, fileID string, value bool) (*models.File, error) {

	userID, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	file, err := s.files.SetPublic(ctx, fileID, userID, value)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		s.logger.Error(ctx, "visibility update failed", "fileId", fileID, "error", err)
		return nil, common.ErrInternal
	}

	return file, nil
}

// Open streams the bytes of a file. The token is optional: a public file is
// served to anyone, a private one only to its owner, and every refusal is a
// plain not-found. A folder has no bytes and is rejected distinctly. When
// size names a derivative width, the derivative blob is served and its
// absence is not-found (derivatives are never generated on demand).
func (s *FileService) Open(ctx context.Context, token, fileID, size string) (*Content, error) {

	// An unresolvable token is not fatal here; it only means no identity.
	userID, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		userID = ""
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("file lookup: %w", err)
	}

	if !file.IsPublic && (userID == "" || userID != file.OwnerID) {
		return nil, common.ErrNotFound
	}

	if file.IsFolder() {
		return nil, common.ErrNoContent
	}

	key := file.StorageKey
	if size != "" {
		// size must name one of the fixed derivative widths; anything else
		// reads as absent. Raw caller input never reaches the blob store.
		width, err := strconv.Atoi(size)
		if err != nil || !blob.ValidDerivativeWidth(width) {
			return nil, common.ErrNotFound
		}
		key = blob.DerivativeKey(key, width)
	}

	body, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("blob open: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Content{Body: body, ContentType: contentType}, nil
}
