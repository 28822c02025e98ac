package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vaultrest/core"
)

// ProfileCredentialResolver loads a named profile and opens its sealed API
// key on every Resolve.
type ProfileCredentialResolver struct {
	profiles ProfileReader
	secrets  core.SecretProvider
	name     string
}

func NewProfileCredentialResolver(profiles ProfileReader, secrets core.SecretProvider, name string) (*ProfileCredentialResolver, error) {
	if profiles == nil {
		return nil, fmt.Errorf("sqlstore: profile reader is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("sqlstore: profile name is required")
	}
	return &ProfileCredentialResolver{profiles: profiles, secrets: secrets, name: name}, nil
}

func (r *ProfileCredentialResolver) Resolve(ctx context.Context) (core.Credentials, error) {
	if r == nil || r.profiles == nil || r.secrets == nil {
		return core.Credentials{}, credentialError("profile credential resolver is not configured", goerrors.CategoryInternal, core.ServiceErrorInternal, http.StatusInternalServerError, nil)
	}
	profile, err := r.profiles.GetByName(ctx, r.name)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return core.Credentials{}, credentialError(
				fmt.Sprintf("vault profile %q not found", r.name),
				goerrors.CategoryNotFound,
				core.ServiceErrorNotFound,
				http.StatusNotFound,
				err,
			)
		}
		return core.Credentials{}, err
	}

	apiKey, err := r.secrets.Decrypt(ctx, profile.EncryptedAPIKey)
	if err != nil {
		return core.Credentials{}, credentialError(
			fmt.Sprintf("open api key for vault profile %q", r.name),
			goerrors.CategoryAuth,
			core.ServiceErrorCredentialsInvalid,
			http.StatusUnauthorized,
			err,
		)
	}
	creds := core.Credentials{
		BaseURL:         profile.BaseURL,
		APIKey:          string(apiKey),
		IgnoreTLSErrors: profile.IgnoreTLSErrors,
	}.Normalize()
	if err := creds.Validate(); err != nil {
		return core.Credentials{}, credentialError(err.Error(), goerrors.CategoryValidation, core.ServiceErrorCredentialsInvalid, http.StatusBadRequest, err)
	}
	return creds, nil
}

func credentialError(message string, category goerrors.Category, textCode string, code int, source error) error {
	if source == nil {
		return goerrors.New(message, category).
			WithCode(code).
			WithTextCode(textCode)
	}
	return goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
}
