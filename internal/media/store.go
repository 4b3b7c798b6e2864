package media

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/google/uuid"
)

var ErrAssetNotFound = errors.New("asset does not exist")

type (
	// assetRow is the raw table shape; the JSONB columns are carried
	// inside JsonColumn containers so that the public Asset API doesn't
	// leak the persistence mechanism.
	assetRow struct {
		ID           uuid.UUID                          `db:"id"`
		OriginalName string                             `db:"original_name"`
		SourcePath   string                             `db:"source_path"`
		SizeBytes    int64                              `db:"size_bytes"`
		ContentHash  string                             `db:"content_hash"`
		CreatedAt    sql.NullTime                       `db:"created_at"`
		Metadata     database.JsonColumn[Metadata]      `db:"metadata"`
		Derived      database.JsonColumn[DerivedAssets] `db:"derived"`
	}

	Store struct{}
)

func NewStore() *Store { return &Store{} }

func (store *Store) Save(db database.Queryable, asset *Asset) error {
	_, err := db.Exec(`
		INSERT INTO assets(id, original_name, source_path, size_bytes, content_hash, created_at, metadata, derived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(id) DO UPDATE
			SET metadata = EXCLUDED.metadata, derived = EXCLUDED.derived
	`, asset.ID, asset.OriginalName, asset.SourcePath, asset.SizeBytes, asset.ContentHash, asset.CreatedAt,
		database.NewJsonColumn(asset.Metadata), database.NewJsonColumn(asset.Derived))
	if err != nil {
		return fmt.Errorf("failed to save asset %s: %w", asset.ID, err)
	}

	return nil
}

func (store *Store) Get(db database.Queryable, id uuid.UUID) (*Asset, error) {
	query, args, err := selectAssetBuilder().Where("assets.id=?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select asset query: %w", err)
	}

	var row assetRow
	if err := db.Get(&row, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	return assetRowToAsset(&row), nil
}

// GetByContentHash finds an existing asset holding identical content,
// letting callers detect duplicate uploads before ingesting a copy.
func (store *Store) GetByContentHash(db database.Queryable, hash string) (*Asset, error) {
	query, args, err := selectAssetBuilder().Where("assets.content_hash=?", hash).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select asset query: %w", err)
	}

	var row assetRow
	if err := db.Get(&row, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	return assetRowToAsset(&row), nil
}

func (store *Store) GetAll(db database.Queryable) ([]*Asset, error) {
	query, args, err := selectAssetBuilder().OrderBy("assets.created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list assets query: %w", err)
	}

	var rows []assetRow
	if err := db.Select(&rows, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	output := make([]*Asset, len(rows))
	for k := range rows {
		output[k] = assetRowToAsset(&rows[k])
	}

	return output, nil
}

func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	result, err := db.Exec(`DELETE FROM assets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrAssetNotFound
	}

	return nil
}

func selectAssetBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("assets.*").
		From("assets")
}

func assetRowToAsset(row *assetRow) *Asset {
	asset := &Asset{
		ID:           row.ID,
		OriginalName: row.OriginalName,
		SourcePath:   row.SourcePath,
		SizeBytes:    row.SizeBytes,
		ContentHash:  row.ContentHash,
		Metadata:     row.Metadata.Get(),
		Derived:      row.Derived.Get(),
	}
	if row.CreatedAt.Valid {
		asset.CreatedAt = row.CreatedAt.Time
	}

	return asset
}
