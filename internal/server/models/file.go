// Package models defines server-side data models persisted in the database.
package models

import "time"

// File type discriminators. A folder carries no blob; a file or image owns
// exactly one primary blob in the blob store.
const (
	TypeFolder = "folder"
	TypeFile   = "file"
	TypeImage  = "image"
)

// RootParentID is the sentinel parent value denoting "no parent / top level".
const RootParentID = "0"

// ValidType reports whether t is one of the known file types.
func ValidType(t string) bool {
	return t == TypeFolder || t == TypeFile || t == TypeImage
}

// File describes a user-owned entity: a folder, a plain file or an image.
// Everything except IsPublic is immutable after creation.
type File struct {
	// ID is the store-assigned identity.
	ID string `json:"id"`
	// OwnerID is the user that created the entity.
	OwnerID string `json:"userId"`
	// Name is the user-supplied display name. It is never used as a storage key.
	Name string `json:"name"`
	// Type is one of TypeFolder, TypeFile, TypeImage.
	Type string `json:"type"`
	// IsPublic controls anonymous byte retrieval. The only mutable field.
	IsPublic bool `json:"isPublic"`
	// ParentID references a folder entity, or RootParentID.
	ParentID string `json:"parentId"`
	// StorageKey is the opaque, generated blob-store location of the primary
	// blob. Empty for folders.
	StorageKey string `json:"localPath,omitempty"`

	CreatedAt time.Time `json:"-"`
}

// IsFolder reports whether the entity is a folder.
func (f *File) IsFolder() bool {
	return f.Type == TypeFolder
}

// Projection is the public view of a File returned by the upload endpoint.
// It never exposes the storage location.
type Projection struct {
	ID       string `json:"id"`
	OwnerID  string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID string `json:"parentId"`
}

// Project builds the public projection of f.
func (f *File) Project() *Projection {
	return &Projection{
		ID:       f.ID,
		OwnerID:  f.OwnerID,
		Name:     f.Name,
		Type:     f.Type,
		IsPublic: f.IsPublic,
		ParentID: f.ParentID,
	}
}
