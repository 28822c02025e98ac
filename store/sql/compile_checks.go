package sqlstore

import "github.com/goliatone/go-vaultrest/core"

var (
	_ ProfileRepository       = (*ProfileStore)(nil)
	_ ProfileRepository       = (*CachedProfileStore)(nil)
	_ core.CredentialResolver = (*ProfileCredentialResolver)(nil)
)
