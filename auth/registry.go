package auth

import (
	"bufio"
	"crypto/subtle"
	"os"
	"strings"
	"sync"

	"github.com/oddbit-project/roadwatch/utils"
	"golang.org/x/crypto/bcrypt"
)

const (
	ErrEmptyFile        = utils.Error("credentials file is empty")
	ErrMalformedLine    = utils.Error("malformed credentials line")
	ErrDuplicateSensor  = utils.Error("duplicate sensor id")
	ErrSensorNotFound   = utils.Error("sensor not found")
	ErrEmptySensorID    = utils.Error("sensor id is empty")
	ErrInvalidSensorID  = utils.Error("sensor id contains ':'")
	ErrEmptyCredential  = utils.Error("credential is empty")
)

// CredentialVerifier checks a sensor credential against the registry
type CredentialVerifier interface {
	VerifyCredential(clientID, credential string) bool
}

// Registry holds sensor credentials loaded from a htpasswd-style file, one
// "clientID:bcrypt-hash" pair per line. Lines starting with '#' are skipped.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewRegistry creates an empty credential registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]string),
	}
}

// LoadRegistry reads a credentials file into a new registry
func LoadRegistry(filename string) (*Registry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := NewRegistry()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, ErrMalformedLine
		}
		if _, exists := r.entries[parts[0]]; exists {
			return nil, ErrDuplicateSensor
		}
		r.entries[parts[0]] = parts[1]
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if len(r.entries) == 0 {
		return nil, ErrEmptyFile
	}
	return r, nil
}

// AddSensor registers a sensor with a bcrypt hash of the given credential
func (r *Registry) AddSensor(clientID, credential string) error {
	if clientID == "" {
		return ErrEmptySensorID
	}
	if strings.Contains(clientID, ":") {
		return ErrInvalidSensorID
	}
	if credential == "" {
		return ErrEmptyCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[clientID]; exists {
		return ErrDuplicateSensor
	}
	r.entries[clientID] = string(hash)
	return nil
}

// RemoveSensor removes a sensor from the registry
func (r *Registry) RemoveSensor(clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[clientID]; !exists {
		return ErrSensorNotFound
	}
	delete(r.entries, clientID)
	return nil
}

// SensorExists returns true if the sensor is registered
func (r *Registry) SensorExists(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[clientID]
	return exists
}

// VerifyCredential checks a credential against the stored hash. A bcrypt hash
// is compared with bcrypt; anything else falls back to a constant-time plain
// comparison, so provisioning scripts can seed plaintext entries.
func (r *Registry) VerifyCredential(clientID, credential string) bool {
	r.mu.RLock()
	stored, exists := r.entries[clientID]
	r.mu.RUnlock()

	if !exists {
		// burn comparable time so unknown ids are not distinguishable
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(credential))
		return false
	}

	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(credential)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(credential)) == 1
}

// SaveRegistry writes the registry to a file, overwriting any existing content
func (r *Registry) SaveRegistry(filename string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for clientID, hash := range r.entries {
		sb.WriteString(clientID)
		sb.WriteByte(':')
		sb.WriteString(hash)
		sb.WriteByte('\n')
	}
	return os.WriteFile(filename, []byte(sb.String()), 0600)
}

// dummyHash is a valid bcrypt hash of an unguessable random value, used to
// equalize verification time for unknown sensor ids
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("roadwatch-dummy-credential"), bcrypt.DefaultCost)
	utils.PanicOnError(err)
	return h
}()
