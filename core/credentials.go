package core

import "context"

// StaticCredentialResolver hands out a fixed set of credentials.
type StaticCredentialResolver struct {
	Credentials Credentials
}

func NewStaticCredentialResolver(creds Credentials) *StaticCredentialResolver {
	return &StaticCredentialResolver{Credentials: creds}
}

func NewConfigCredentialResolver(cfg VaultConfig) *StaticCredentialResolver {
	return NewStaticCredentialResolver(cfg.Credentials())
}

func (r *StaticCredentialResolver) Resolve(context.Context) (Credentials, error) {
	if r == nil {
		return Credentials{}, credentialsError(errMissingCredentials)
	}
	creds := r.Credentials.Normalize()
	if err := creds.Validate(); err != nil {
		return Credentials{}, credentialsError(err)
	}
	return creds, nil
}
