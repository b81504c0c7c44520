package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/benmeehan/signage-agent/pkg/kvstore"
)

const (
	// Alphabet excludes characters that are easy to misread on a screen (0 O I 1 l ...).
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghkmnpqrstuvwxyz23456789"

	DeviceIDLength   = 12
	ScreenCodeLength = 6

	DeviceIDKey   = "uniqueId"
	ScreenCodeKey = "screenCode"
)

// Identity holds the device identifier and the screen pairing code.
type Identity struct {
	DeviceID   string `json:"device_id"`
	ScreenCode string `json:"screen_code"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	EnsureDeviceIdentity() (string, error)
	EnsureScreenCode() (string, error)
	GetDeviceID() string
	GetScreenCode() string
}

// DeviceInfo persists the identity tokens in a key-value store, generating
// each one the first time it is requested.
type DeviceInfo struct {
	store    kvstore.Store
	generate func(length int) (string, error)

	mu       sync.Mutex
	identity Identity
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(store kvstore.Store) *DeviceInfo {
	return &DeviceInfo{
		store:    store,
		generate: GenerateToken,
	}
}

// EnsureDeviceIdentity returns the persisted device identifier, creating it if absent.
func (d *DeviceInfo) EnsureDeviceIdentity() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.ensure(DeviceIDKey, DeviceIDLength)
	if err != nil {
		return "", err
	}
	d.identity.DeviceID = id
	return id, nil
}

// EnsureScreenCode returns the persisted screen code, creating it if absent.
func (d *DeviceInfo) EnsureScreenCode() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, err := d.ensure(ScreenCodeKey, ScreenCodeLength)
	if err != nil {
		return "", err
	}
	d.identity.ScreenCode = code
	return code, nil
}

// GetDeviceID returns the device identifier loaded by EnsureDeviceIdentity.
func (d *DeviceInfo) GetDeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identity.DeviceID
}

// GetScreenCode returns the screen code loaded by EnsureScreenCode.
func (d *DeviceInfo) GetScreenCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identity.ScreenCode
}

func (d *DeviceInfo) ensure(key string, length int) (string, error) {
	value, ok, err := d.store.Get(key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if ok && value != "" {
		return value, nil
	}

	value, err = d.generate(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", key, err)
	}
	if err := d.store.Put(key, value); err != nil {
		return "", fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return value, nil
}

// GenerateToken draws length characters uniformly from Alphabet.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}

	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
