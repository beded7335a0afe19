package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads a single read-only account from the environment.
// BILAG_EMAIL and BILAG_PASSWORD win over the plain EMAIL and PASSWORD.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty email must match it.
func (e *EnvironmentStore) Retrieve(email string) (*Account, error) {
	envEmail, password := lookupEnvCredentials()
	if envEmail == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && !strings.EqualFold(email, envEmail) {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Email:        envEmail,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment holds one
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for email
func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}

func lookupEnvCredentials() (email, password string) {
	email = firstNonEmpty(os.Getenv("BILAG_EMAIL"), os.Getenv("EMAIL"))
	password = firstNonEmpty(os.Getenv("BILAG_PASSWORD"), os.Getenv("PASSWORD"))
	return email, password
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
