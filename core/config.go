package core

import (
	"fmt"
	"strings"
)

type BatchConfig struct {
	ContinueOnFail bool `koanf:"continue_on_fail" mapstructure:"continue_on_fail"`
}

// VaultConfig mirrors the credential fields of the Local REST API plugin.
type VaultConfig struct {
	BaseURL         string `koanf:"base_url" mapstructure:"base_url"`
	APIKey          string `koanf:"api_key" mapstructure:"api_key"`
	// IgnoreSSLIssues is nil when unset, which keeps verification skipped.
	IgnoreSSLIssues *bool `koanf:"ignore_ssl_issues" mapstructure:"ignore_ssl_issues"`
}

func (v VaultConfig) SkipTLSVerification() bool {
	return v.IgnoreSSLIssues == nil || *v.IgnoreSSLIssues
}

func (v VaultConfig) Credentials() Credentials {
	return Credentials{
		BaseURL:         v.BaseURL,
		APIKey:          v.APIKey,
		IgnoreTLSErrors: v.SkipTLSVerification(),
	}.Normalize()
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Batch       BatchConfig `koanf:"batch" mapstructure:"batch"`
	Vault       VaultConfig `koanf:"vault" mapstructure:"vault"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "vaultrest",
		Batch:       BatchConfig{},
		Vault: VaultConfig{
			BaseURL:         DefaultVaultBaseURL,
			IgnoreSSLIssues: Bool(true),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return nil
}

// Clone copies c so decoding into the result never writes through to c.
func (c Config) Clone() Config {
	out := c
	if c.Vault.IgnoreSSLIssues != nil {
		out.Vault.IgnoreSSLIssues = Bool(*c.Vault.IgnoreSSLIssues)
	}
	return out
}

func Bool(value bool) *bool {
	return &value
}
