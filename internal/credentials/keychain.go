// Package credentials stores and resolves the bearer tokens and OAuth
// tokens an upstream's auth{} config references, grounded on the
// teacher's internal/domain/integration credential stack.
package credentials

import (
	"fmt"

	"github.com/danieljoos/wincred"
)

// Keychain stores secrets in the OS credential manager, namespaced by
// prefix so gatekit's entries never collide with another application's.
type Keychain struct {
	prefix string
}

// NewKeychain builds a Keychain under prefix.
func NewKeychain(prefix string) *Keychain {
	return &Keychain{prefix: prefix}
}

// SetSecret stores secret under id.
func (k *Keychain) SetSecret(id, secret string) error {
	cred := wincred.NewGenericCredential(fmt.Sprintf("%s:%s", k.prefix, id))
	cred.CredentialBlob = []byte(secret)
	cred.Persist = wincred.PersistSession
	return cred.Write()
}

// GetSecret retrieves the secret stored under id.
func (k *Keychain) GetSecret(id string) (string, error) {
	cred, err := wincred.GetGenericCredential(fmt.Sprintf("%s:%s", k.prefix, id))
	if err != nil {
		return "", err
	}
	return string(cred.CredentialBlob), nil
}

// RemoveSecret deletes the secret stored under id.
func (k *Keychain) RemoveSecret(id string) error {
	cred, err := wincred.GetGenericCredential(fmt.Sprintf("%s:%s", k.prefix, id))
	if err != nil {
		return err
	}
	return cred.Delete()
}
