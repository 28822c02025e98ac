package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ BatchExecutor      = (*Runner)(nil)
	_ CredentialResolver = (*StaticCredentialResolver)(nil)
	_ CredentialResolver = CredentialResolverFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
