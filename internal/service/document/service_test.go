package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type directionRepoMock struct {
	getDirectionFunc func(ctx context.Context, id string) (*domain.Direction, error)
	getFolderFunc    func(ctx context.Context, id string) (*domain.Folder, error)
	listFoldersFunc  func(ctx context.Context, directionID string) ([]domain.Folder, error)
	createFolderFunc func(ctx context.Context, folder *domain.Folder) error
}

func (m directionRepoMock) CreateDirection(context.Context, *domain.Direction) error { return nil }

func (m directionRepoMock) GetDirectionByID(ctx context.Context, id string) (*domain.Direction, error) {
	if m.getDirectionFunc != nil {
		return m.getDirectionFunc(ctx, id)
	}
	return &domain.Direction{ID: id, Name: "Finance"}, nil
}

func (m directionRepoMock) ListDirections(context.Context) ([]domain.Direction, error) {
	return nil, nil
}

func (m directionRepoMock) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	if m.createFolderFunc != nil {
		return m.createFolderFunc(ctx, folder)
	}
	return nil
}

func (m directionRepoMock) GetFolderByID(ctx context.Context, id string) (*domain.Folder, error) {
	if m.getFolderFunc != nil {
		return m.getFolderFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m directionRepoMock) ListFoldersByDirection(ctx context.Context, directionID string) ([]domain.Folder, error) {
	if m.listFoldersFunc != nil {
		return m.listFoldersFunc(ctx, directionID)
	}
	return nil, nil
}

type documentRepoMock struct {
	createFunc func(ctx context.Context, doc *domain.Document) error
	getFunc    func(ctx context.Context, id string) (*domain.Document, error)
	deleteFunc func(ctx context.Context, id string) error
}

func (m documentRepoMock) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, doc)
	}
	return nil
}

func (m documentRepoMock) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m documentRepoMock) ListDocumentsByFolder(context.Context, string) ([]domain.Document, error) {
	return nil, nil
}

func (m documentRepoMock) DeleteDocument(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func TestCreateFolderRejectsCrossDirectionParent(t *testing.T) {
	directionID := uuid.NewString()
	parentID := uuid.NewString()
	directions := directionRepoMock{
		getFolderFunc: func(_ context.Context, id string) (*domain.Folder, error) {
			return &domain.Folder{ID: id, DirectionID: uuid.NewString()}, nil
		},
	}
	svc := New(directions, documentRepoMock{}, newLogger())

	if _, err := svc.CreateFolder(context.Background(), directionID, parentID, "Budgets", "user-1"); !errors.Is(err, ErrFolderMismatch) {
		t.Fatalf("expected ErrFolderMismatch, got %v", err)
	}
}

func TestFolderTreeBuildsForest(t *testing.T) {
	directionID := uuid.NewString()
	rootID := uuid.NewString()
	childID := uuid.NewString()
	orphanID := uuid.NewString()
	missingParent := uuid.NewString()
	now := time.Now().UTC()
	directions := directionRepoMock{
		listFoldersFunc: func(_ context.Context, id string) ([]domain.Folder, error) {
			return []domain.Folder{
				{ID: rootID, DirectionID: id, Name: "Archives", CreatedAt: now},
				{ID: childID, DirectionID: id, ParentID: &rootID, Name: "2025", CreatedAt: now},
				{ID: orphanID, DirectionID: id, ParentID: &missingParent, Name: "Orphan", CreatedAt: now},
			}, nil
		},
	}
	svc := New(directions, documentRepoMock{}, newLogger())

	roots, err := svc.FolderTree(context.Background(), directionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected two roots (real root and orphan), got %d", len(roots))
	}
	var root *FolderNode
	for _, node := range roots {
		if node.ID == rootID {
			root = node
		}
	}
	if root == nil {
		t.Fatal("expected root folder in forest")
	}
	if len(root.Children) != 1 || root.Children[0].ID != childID {
		t.Fatalf("expected child attached to root, got %+v", root.Children)
	}
}

func TestCreateDocumentLinkRequiresURL(t *testing.T) {
	folderID := uuid.NewString()
	directions := directionRepoMock{
		getFolderFunc: func(_ context.Context, id string) (*domain.Folder, error) {
			return &domain.Folder{ID: id}, nil
		},
	}
	svc := New(directions, documentRepoMock{}, newLogger())

	input := CreateInput{FolderID: folderID, Kind: domain.DocumentKindLink, Name: "Portal"}
	if _, err := svc.CreateDocument(context.Background(), input, "user-1"); !errors.Is(err, ErrURLRequired) {
		t.Fatalf("expected ErrURLRequired, got %v", err)
	}
}

func TestCreateDocumentRejectsUnknownKind(t *testing.T) {
	svc := New(directionRepoMock{}, documentRepoMock{}, newLogger())
	input := CreateInput{FolderID: uuid.NewString(), Kind: "image", Name: "Logo"}
	if _, err := svc.CreateDocument(context.Background(), input, "user-1"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestDeleteDocumentRequiresCreatorOrAdmin(t *testing.T) {
	docID := uuid.NewString()
	deleted := 0
	docs := documentRepoMock{
		getFunc: func(_ context.Context, id string) (*domain.Document, error) {
			return &domain.Document{ID: id, CreatedBy: "creator"}, nil
		},
		deleteFunc: func(context.Context, string) error {
			deleted++
			return nil
		},
	}
	svc := New(directionRepoMock{}, docs, newLogger())

	stranger := &domain.User{ID: "stranger", Role: domain.RoleMember}
	if err := svc.DeleteDocument(context.Background(), docID, stranger); !errors.Is(err, ErrDeleteNotAllowed) {
		t.Fatalf("expected ErrDeleteNotAllowed, got %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected no deletion, got %d", deleted)
	}

	admin := &domain.User{ID: "someone-else", Role: domain.RoleAdmin}
	if err := svc.DeleteDocument(context.Background(), docID, admin); err != nil {
		t.Fatalf("unexpected error for admin: %v", err)
	}
	creator := &domain.User{ID: "creator", Role: domain.RoleMember}
	if err := svc.DeleteDocument(context.Background(), docID, creator); err != nil {
		t.Fatalf("unexpected error for creator: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected two deletions, got %d", deleted)
	}
}
