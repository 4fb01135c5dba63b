package repository

import (
	"context"
	"time"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// DeviceLoginRepository owns the pairing request state machine data. All
// transitions are conditional updates guarded by the current status so that
// concurrent resolvers get exactly one winner.
type DeviceLoginRepository interface {
	// CreateDeviceLogin supersedes any pending request for the same user and
	// inserts the new one in a single transaction.
	CreateDeviceLogin(ctx context.Context, req *domain.DeviceLoginRequest) error
	GetDeviceLogin(ctx context.Context, id string) (*domain.DeviceLoginRequest, error)
	// ResolveDeviceLogin transitions a pending, unexpired request to the given
	// terminal status. ErrInvalidArgument is returned when the guard fails.
	ResolveDeviceLogin(ctx context.Context, id, status, actedDevice string) (*domain.DeviceLoginRequest, error)
	// MarkDeviceLoginExpired lazily materializes expiry for a pending request.
	MarkDeviceLoginExpired(ctx context.Context, id string) error
	// ClaimDeviceLogin stamps the one-shot token delivery marker on an
	// approved request and reports whether this caller won the claim.
	ClaimDeviceLogin(ctx context.Context, id string, at time.Time) (bool, error)
	ListPendingDeviceLogins(ctx context.Context, userID string) ([]domain.DeviceLoginRequest, error)
	ListResolvedDeviceLogins(ctx context.Context, userID string, limit int) ([]domain.DeviceLoginRequest, error)
}

// DirectionRepository persists directions and their folder trees.
type DirectionRepository interface {
	CreateDirection(ctx context.Context, direction *domain.Direction) error
	GetDirectionByID(ctx context.Context, id string) (*domain.Direction, error)
	ListDirections(ctx context.Context) ([]domain.Direction, error)
	CreateFolder(ctx context.Context, folder *domain.Folder) error
	GetFolderByID(ctx context.Context, id string) (*domain.Folder, error)
	ListFoldersByDirection(ctx context.Context, directionID string) ([]domain.Folder, error)
}

// DocumentRepository persists document metadata entries.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocumentByID(ctx context.Context, id string) (*domain.Document, error)
	ListDocumentsByFolder(ctx context.Context, folderID string) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// PushDeviceRepository persists mobile push registrations.
type PushDeviceRepository interface {
	UpsertPushDevice(ctx context.Context, device *domain.PushDevice) error
	DeletePushDevice(ctx context.Context, userID, token string) error
	ListPushDevicesByUser(ctx context.Context, userID string) ([]domain.PushDevice, error)
}
