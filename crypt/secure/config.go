package secure

import (
	"strings"

	"github.com/oddbit-project/roadwatch/utils/env"
	"github.com/oddbit-project/roadwatch/utils/fs"
)

// CredentialConfig is a source for a secret value
type CredentialConfig interface {
	IsEmpty() bool
	Fetch() (string, error)
}

// DefaultCredentialConfig misc options for credentials
// if different field names are required, just implement CredentialConfig interface
type DefaultCredentialConfig struct {
	Password       string `json:"password"`       // Password plaintext password; if set, is used instead of the rest
	PasswordEnvVar string `json:"passwordEnvVar"` // PasswordEnvVar name of env var with secret
	PasswordFile   string `json:"passwordFile"`   // PasswordFile name of secrets file, to be read; if none of the above set, this one is used
}

// IsEmpty returns true if credential source is empty
func (c DefaultCredentialConfig) IsEmpty() bool {
	return strings.TrimSpace(c.Password) == "" &&
		strings.TrimSpace(c.PasswordEnvVar) == "" &&
		strings.TrimSpace(c.PasswordFile) == ""
}

// Fetch retrieve the contents of the credential
func (c DefaultCredentialConfig) Fetch() (string, error) {
	plainText := strings.TrimSpace(c.Password)
	if plainText != "" {
		return plainText, nil
	}

	// attempt to read env var, if set
	if envVar := strings.TrimSpace(c.PasswordEnvVar); envVar != "" {
		// read from env var and clear it
		plainText = env.GetEnvVar(envVar)
		_ = env.SetEnvVar(envVar, "")
		return plainText, nil
	}

	// attempt to read secrets file, if set
	if c.PasswordFile != "" {
		content, err := fs.ReadString(c.PasswordFile)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(content, "\n"), nil
	}

	return "", nil
}
