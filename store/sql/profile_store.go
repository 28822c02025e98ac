package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-vaultrest/core"
	"github.com/goliatone/go-vaultrest/security"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrProfileNotFound = errors.New("sqlstore: profile not found")

// ProfileReader is the read side the credential resolver depends on.
type ProfileReader interface {
	GetByName(ctx context.Context, name string) (Profile, error)
}

type ProfileRepository interface {
	ProfileReader
	Save(ctx context.Context, in SaveProfileInput) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Delete(ctx context.Context, name string) error
}

// ProfileStore persists vault profiles, sealing API keys with secrets
// before they reach the database.
type ProfileStore struct {
	db      *bun.DB
	repo    repository.Repository[*profileRecord]
	secrets core.SecretProvider
}

func NewProfileStore(db *bun.DB, secrets core.SecretProvider) (*ProfileStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*profileRecord](db, profileHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid profile repository wiring: %w", err)
		}
	}
	return &ProfileStore{db: db, repo: repo, secrets: secrets}, nil
}

// Save creates the profile or replaces the one with the same name.
func (s *ProfileStore) Save(ctx context.Context, in SaveProfileInput) (Profile, error) {
	if s == nil || s.repo == nil || s.secrets == nil {
		return Profile{}, fmt.Errorf("sqlstore: profile store is not configured")
	}
	in = in.normalize()
	if in.Name == "" {
		return Profile{}, fmt.Errorf("sqlstore: profile name is required")
	}
	if in.APIKey == "" {
		return Profile{}, fmt.Errorf("sqlstore: api key is required")
	}

	sealed, err := s.secrets.Encrypt(ctx, []byte(in.APIKey))
	if err != nil {
		return Profile{}, fmt.Errorf("sqlstore: seal api key: %w", err)
	}
	keyID, keyVersion := "", 0
	if meta, metaErr := security.ParseEnvelopeMetadata(sealed); metaErr == nil {
		keyID, keyVersion = meta.KeyID, meta.Version
	}
	now := time.Now().UTC()

	current, err := s.find(ctx, in.Name)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return Profile{}, err
	}
	if current == nil {
		created, createErr := s.repo.Create(ctx, &profileRecord{
			ID:                uuid.NewString(),
			Name:              in.Name,
			BaseURL:           in.BaseURL,
			EncryptedAPIKey:   sealed,
			EncryptionKeyID:   keyID,
			EncryptionVersion: keyVersion,
			IgnoreTLSErrors:   in.IgnoreTLSErrors,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if createErr != nil {
			return Profile{}, createErr
		}
		return created.toDomain(), nil
	}

	current.BaseURL = in.BaseURL
	current.EncryptedAPIKey = sealed
	current.EncryptionKeyID = keyID
	current.EncryptionVersion = keyVersion
	current.IgnoreTLSErrors = in.IgnoreTLSErrors
	current.UpdatedAt = now
	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(current.ID))
	if err != nil {
		return Profile{}, err
	}
	return updated.toDomain(), nil
}

func (s *ProfileStore) GetByName(ctx context.Context, name string) (Profile, error) {
	if s == nil || s.repo == nil {
		return Profile{}, fmt.Errorf("sqlstore: profile store is not configured")
	}
	record, err := s.find(ctx, name)
	if err != nil {
		return Profile{}, err
	}
	return record.toDomain(), nil
}

func (s *ProfileStore) List(ctx context.Context) ([]Profile, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: profile store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("name ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ProfileStore) Delete(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: profile store is not configured")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: profile name is required")
	}
	res, err := s.db.NewDelete().
		Model((*profileRecord)(nil)).
		Where("name = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, trimmed)
	}
	return nil
}

func (s *ProfileStore) find(ctx context.Context, name string) (*profileRecord, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: profile name is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("name", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, trimmed)
	}
	return records[0], nil
}
