package document

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
)

var (
	ErrNameRequired     = errors.New("document: name is required")
	ErrInvalidKind      = errors.New("document: kind must be file or link")
	ErrURLRequired      = errors.New("document: link entries require a url")
	ErrFolderMismatch   = errors.New("document: parent folder belongs to another direction")
	ErrDeleteNotAllowed = errors.New("document: only the creator or an admin may delete")
)

// Service manages directions, folder trees and document metadata.
type Service struct {
	directions repository.DirectionRepository
	documents  repository.DocumentRepository
	logger     *slog.Logger
}

// New constructs a Service.
func New(directions repository.DirectionRepository, documents repository.DocumentRepository, logger *slog.Logger) Service {
	return Service{directions: directions, documents: documents, logger: logger}
}

// CreateDirection registers a new organizational unit.
func (s Service) CreateDirection(ctx context.Context, name string) (*domain.Direction, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameRequired
	}
	direction := &domain.Direction{
		ID:        uuid.NewString(),
		Name:      trimmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.directions.CreateDirection(ctx, direction); err != nil {
		return nil, err
	}
	s.logger.Info("direction created", "direction_id", direction.ID, "name", trimmed)
	return direction, nil
}

// ListDirections enumerates all directions.
func (s Service) ListDirections(ctx context.Context) ([]domain.Direction, error) {
	return s.directions.ListDirections(ctx)
}

// GetDirection returns one direction by identifier.
func (s Service) GetDirection(ctx context.Context, id string) (*domain.Direction, error) {
	return s.directions.GetDirectionByID(ctx, id)
}

// CreateFolder adds a node to a direction's tree. A parent, when given, must
// live in the same direction.
func (s Service) CreateFolder(ctx context.Context, directionID, parentID, name, createdBy string) (*domain.Folder, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameRequired
	}
	if _, err := s.directions.GetDirectionByID(ctx, directionID); err != nil {
		return nil, err
	}
	folder := &domain.Folder{
		ID:          uuid.NewString(),
		DirectionID: directionID,
		Name:        trimmed,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if parent := strings.TrimSpace(parentID); parent != "" {
		parentFolder, err := s.directions.GetFolderByID(ctx, parent)
		if err != nil {
			return nil, err
		}
		if parentFolder.DirectionID != directionID {
			return nil, ErrFolderMismatch
		}
		folder.ParentID = &parent
	}
	if err := s.directions.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// FolderNode is a folder with its resolved children.
type FolderNode struct {
	domain.Folder
	Children []*FolderNode `json:"children,omitempty"`
}

// FolderTree returns the direction's folders as a forest of root nodes.
// Children keep the repository's name ordering.
func (s Service) FolderTree(ctx context.Context, directionID string) ([]*FolderNode, error) {
	if _, err := s.directions.GetDirectionByID(ctx, directionID); err != nil {
		return nil, err
	}
	folders, err := s.directions.ListFoldersByDirection(ctx, directionID)
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*FolderNode, len(folders))
	for i := range folders {
		nodes[folders[i].ID] = &FolderNode{Folder: folders[i]}
	}
	roots := make([]*FolderNode, 0)
	for _, folder := range folders {
		node := nodes[folder.ID]
		if folder.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*folder.ParentID]
		if !ok {
			// Orphaned node, surface it at the root rather than dropping it.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots, nil
}

// CreateInput describes a new document entry.
type CreateInput struct {
	FolderID  string `json:"folder_id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	SizeBytes *int64 `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// CreateDocument stores a file-metadata or link entry in a folder.
func (s Service) CreateDocument(ctx context.Context, input CreateInput, createdBy string) (*domain.Document, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	kind := strings.TrimSpace(input.Kind)
	if kind != domain.DocumentKindFile && kind != domain.DocumentKindLink {
		return nil, ErrInvalidKind
	}
	url := strings.TrimSpace(input.URL)
	if kind == domain.DocumentKindLink && url == "" {
		return nil, ErrURLRequired
	}
	if _, err := s.directions.GetFolderByID(ctx, input.FolderID); err != nil {
		return nil, err
	}
	doc := &domain.Document{
		ID:        uuid.NewString(),
		FolderID:  input.FolderID,
		Kind:      kind,
		Name:      name,
		URL:       url,
		SizeBytes: input.SizeBytes,
		MimeType:  strings.TrimSpace(input.MimeType),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document created", "document_id", doc.ID, "folder_id", doc.FolderID, "kind", kind)
	return doc, nil
}

// GetDocument returns one entry by identifier.
func (s Service) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.GetDocumentByID(ctx, id)
}

// ListDocuments returns a folder's entries.
func (s Service) ListDocuments(ctx context.Context, folderID string) ([]domain.Document, error) {
	if _, err := s.directions.GetFolderByID(ctx, folderID); err != nil {
		return nil, err
	}
	return s.documents.ListDocumentsByFolder(ctx, folderID)
}

// DeleteDocument removes an entry. Only the creator or an admin may delete.
func (s Service) DeleteDocument(ctx context.Context, documentID string, actor *domain.User) error {
	doc, err := s.documents.GetDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.CreatedBy != actor.ID && !actor.IsAdmin() {
		return ErrDeleteNotAllowed
	}
	if err := s.documents.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	s.logger.Info("document deleted", "document_id", documentID, "actor_id", actor.ID)
	return nil
}
