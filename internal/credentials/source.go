// Package credentials supplies the remote-store credential and token blobs handed to every
// client sandbox. The blobs are opaque and never parsed.
package credentials

import (
	"os"
	"strings"

	syncErrors "github.com/harunnryd/synccheck/internal/errors"
)

type Credentials struct {
	Credential string
	Token      string
}

// Validate reports ErrMissingCredentials when either blob is blank.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Credential) == "" {
		missing = append(missing, "credential")
	}
	if strings.TrimSpace(c.Token) == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return syncErrors.MissingCredentials(strings.Join(missing, " and ") + " blob is empty")
	}
	return nil
}

// Empty reports whether both blobs are absent.
func (c Credentials) Empty() bool {
	return c.Credential == "" && c.Token == ""
}

// Source hands out the same credentials for the lifetime of a run.
type Source interface {
	Read() Credentials
}

type EnvSource struct {
	CredentialVar string
	TokenVar      string
	creds         Credentials
}

// FromEnv captures the two variables once; later environment changes are not observed.
func FromEnv(credentialVar, tokenVar string) *EnvSource {
	return &EnvSource{
		CredentialVar: credentialVar,
		TokenVar:      tokenVar,
		creds: Credentials{
			Credential: os.Getenv(credentialVar),
			Token:      os.Getenv(tokenVar),
		},
	}
}

func (s *EnvSource) Read() Credentials {
	return s.creds
}

// Static returns a Source over fixed blobs.
func Static(credential, token string) Source {
	return staticSource{Credentials{Credential: credential, Token: token}}
}

type staticSource struct {
	creds Credentials
}

func (s staticSource) Read() Credentials {
	return s.creds
}
