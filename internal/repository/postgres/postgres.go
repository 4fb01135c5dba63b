package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository        = (*Repository)(nil)
	_ repository.DeviceLoginRepository = (*Repository)(nil)
	_ repository.DirectionRepository   = (*Repository)(nil)
	_ repository.DocumentRepository    = (*Repository)(nil)
	_ repository.PushDeviceRepository  = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, identifier, display_name, role, direction_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Identifier,
		user.DisplayName,
		user.Role,
		stringPtrToNil(user.DirectionID),
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return repository.ErrConflict
			case "23503":
				return repository.ErrNotFound
			}
		}
		return err
	}
	return nil
}

// GetUserByIdentifier fetches a user by login identifier.
func (r *Repository) GetUserByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	const query = `SELECT id, identifier, display_name, role, direction_id, password_hash, created_at
		FROM users WHERE identifier = $1`
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(identifier))
	return scanUser(row)
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, identifier, display_name, role, direction_id, password_hash, created_at
		FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanUser(row)
}

// ListUsers returns all accounts ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT id, identifier, display_name, role, direction_id, password_hash, created_at
		FROM users ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var (
		u           domain.User
		directionID *string
	)
	if err := row.Scan(&u.ID, &u.Identifier, &u.DisplayName, &u.Role, &directionID, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.DirectionID = directionID
	return &u, nil
}

// CreateDirection inserts a direction.
func (r *Repository) CreateDirection(ctx context.Context, direction *domain.Direction) error {
	const query = `INSERT INTO directions (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, direction.ID, direction.Name, direction.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// GetDirectionByID returns a direction by identifier.
func (r *Repository) GetDirectionByID(ctx context.Context, id string) (*domain.Direction, error) {
	const query = `SELECT id, name, created_at FROM directions WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var d domain.Direction
	if err := row.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDirections enumerates all directions ordered by name.
func (r *Repository) ListDirections(ctx context.Context) ([]domain.Direction, error) {
	const query = `SELECT id, name, created_at FROM directions ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	directions := make([]domain.Direction, 0)
	for rows.Next() {
		var d domain.Direction
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		directions = append(directions, d)
	}
	return directions, rows.Err()
}

// CreateFolder inserts a folder node.
func (r *Repository) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	const query = `INSERT INTO folders (id, direction_id, parent_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		folder.ID,
		folder.DirectionID,
		stringPtrToNil(folder.ParentID),
		folder.Name,
		folder.CreatedBy,
		folder.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return repository.ErrNotFound
			case "23505":
				return repository.ErrConflict
			}
		}
		return err
	}
	return nil
}

// GetFolderByID loads a single folder.
func (r *Repository) GetFolderByID(ctx context.Context, id string) (*domain.Folder, error) {
	const query = `SELECT id, direction_id, parent_id, name, created_by, created_at FROM folders WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var (
		f        domain.Folder
		parentID *string
	)
	if err := row.Scan(&f.ID, &f.DirectionID, &parentID, &f.Name, &f.CreatedBy, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	f.ParentID = parentID
	return &f, nil
}

// ListFoldersByDirection returns the full folder set of a direction ordered by name.
func (r *Repository) ListFoldersByDirection(ctx context.Context, directionID string) ([]domain.Folder, error) {
	const query = `SELECT id, direction_id, parent_id, name, created_by, created_at
		FROM folders WHERE direction_id = $1 ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, directionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := make([]domain.Folder, 0)
	for rows.Next() {
		var (
			f        domain.Folder
			parentID *string
		)
		if err := rows.Scan(&f.ID, &f.DirectionID, &parentID, &f.Name, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.ParentID = parentID
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CreateDocument inserts a document metadata entry.
func (r *Repository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	const query = `INSERT INTO documents (id, folder_id, kind, name, url, size_bytes, mime_type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.FolderID,
		doc.Kind,
		doc.Name,
		emptyToNil(doc.URL),
		int64PtrToNil(doc.SizeBytes),
		emptyToNil(doc.MimeType),
		doc.CreatedBy,
		doc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return repository.ErrNotFound
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return err
	}
	return nil
}

// GetDocumentByID fetches a document by identifier.
func (r *Repository) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	const query = `SELECT id, folder_id, kind, name, url, size_bytes, mime_type, created_by, created_at
		FROM documents WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanDocument(row)
}

// ListDocumentsByFolder returns documents in a folder ordered by name.
func (r *Repository) ListDocumentsByFolder(ctx context.Context, folderID string) ([]domain.Document, error) {
	const query = `SELECT id, folder_id, kind, name, url, size_bytes, mime_type, created_by, created_at
		FROM documents WHERE folder_id = $1 ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document entry.
func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	doc, err := scanDocumentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func scanDocumentRow(row pgx.Row) (*domain.Document, error) {
	var (
		doc  domain.Document
		url  *string
		size *int64
		mime *string
	)
	if err := row.Scan(&doc.ID, &doc.FolderID, &doc.Kind, &doc.Name, &url, &size, &mime, &doc.CreatedBy, &doc.CreatedAt); err != nil {
		return nil, err
	}
	if url != nil {
		doc.URL = *url
	}
	doc.SizeBytes = size
	if mime != nil {
		doc.MimeType = *mime
	}
	return &doc, nil
}

// UpsertPushDevice registers or refreshes a push token.
func (r *Repository) UpsertPushDevice(ctx context.Context, device *domain.PushDevice) error {
	const query = `INSERT INTO push_devices (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform`
	_, err := r.pool.Exec(ctx, query, device.UserID, device.Token, device.Platform, device.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

// DeletePushDevice removes a token registration owned by the user.
func (r *Repository) DeletePushDevice(ctx context.Context, userID, token string) error {
	const query = `DELETE FROM push_devices WHERE user_id = $1 AND token = $2`
	cmdTag, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListPushDevicesByUser returns all registered devices of a user.
func (r *Repository) ListPushDevicesByUser(ctx context.Context, userID string) ([]domain.PushDevice, error) {
	const query = `SELECT user_id, token, platform, created_at FROM push_devices WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]domain.PushDevice, 0)
	for rows.Next() {
		var d domain.PushDevice
		if err := rows.Scan(&d.UserID, &d.Token, &d.Platform, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func stringPtrToNil(v *string) any {
	if v == nil {
		return nil
	}
	if strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}

func int64PtrToNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
