package files

import (
	"context"

	"filevault/internal/server/models"
)

// PageSize is the fixed number of entities returned per listing page.
const PageSize = 20

// Repository is the metadata-store surface for File entities. The only
// mutation after creation is the visibility flag; everything else is
// write-once by construction of this interface.
type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*models.File, error)
	ListByOwnerAndParent(ctx context.Context, ownerID, parentID string, page int) ([]*models.File, error)

	// SetPublic atomically flips the visibility flag of the file matching
	// both id and owner, returning the post-update document.
	SetPublic(ctx context.Context, id, ownerID string, value bool) (*models.File, error)

	Count(ctx context.Context) (int64, error)
}
