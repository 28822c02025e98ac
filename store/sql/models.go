package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-vaultrest/core"
	"github.com/uptrace/bun"
)

type profileRecord struct {
	bun.BaseModel `bun:"table:vault_profiles,alias:vp"`

	ID                string    `bun:"id,pk"`
	Name              string    `bun:"name,notnull"`
	BaseURL           string    `bun:"base_url,notnull"`
	EncryptedAPIKey   []byte    `bun:"encrypted_api_key,notnull"`
	EncryptionKeyID   string    `bun:"encryption_key_id,notnull"`
	EncryptionVersion int       `bun:"encryption_version,notnull"`
	IgnoreTLSErrors   bool      `bun:"ignore_tls_errors,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Profile is a named vault endpoint. The API key is only held sealed.
type Profile struct {
	ID                string
	Name              string
	BaseURL           string
	EncryptedAPIKey   []byte
	EncryptionKeyID   string
	EncryptionVersion int
	IgnoreTLSErrors   bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type SaveProfileInput struct {
	Name            string
	BaseURL         string
	APIKey          string
	IgnoreTLSErrors bool
}

func (in SaveProfileInput) normalize() SaveProfileInput {
	in.Name = strings.TrimSpace(in.Name)
	in.BaseURL = strings.TrimSpace(in.BaseURL)
	if in.BaseURL == "" {
		in.BaseURL = core.DefaultVaultBaseURL
	}
	in.APIKey = strings.TrimSpace(in.APIKey)
	return in
}

func (r *profileRecord) toDomain() Profile {
	if r == nil {
		return Profile{}
	}
	return Profile{
		ID:                r.ID,
		Name:              r.Name,
		BaseURL:           r.BaseURL,
		EncryptedAPIKey:   append([]byte(nil), r.EncryptedAPIKey...),
		EncryptionKeyID:   r.EncryptionKeyID,
		EncryptionVersion: r.EncryptionVersion,
		IgnoreTLSErrors:   r.IgnoreTLSErrors,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func cloneProfile(in Profile) Profile {
	out := in
	out.EncryptedAPIKey = append([]byte(nil), in.EncryptedAPIKey...)
	return out
}
