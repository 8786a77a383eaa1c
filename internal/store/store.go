package store

import (
	"encoding/json"

	"closelink/internal/domain"
)

// KV is the secure key-value capability the rest of the system consumes.
// Implementations must keep values confidential at rest.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

const (
	profileKey = "closelink_profile_v1"
	deviceKey  = "closelink_device_v1"
)

// ProfileStore persists the owner's profile and device identity through
// a KV. Session keys and message logs never pass through here.
type ProfileStore struct {
	kv KV
}

func NewProfileStore(kv KV) *ProfileStore { return &ProfileStore{kv: kv} }

func (s *ProfileStore) SaveProfile(p domain.Profile) error {
	return s.setJSON(profileKey, p)
}

// LoadProfile returns ok=false when no profile has been saved yet.
func (s *ProfileStore) LoadProfile() (domain.Profile, bool, error) {
	var p domain.Profile
	ok, err := s.getJSON(profileKey, &p)
	return p, ok, err
}

func (s *ProfileStore) DeleteProfile() error {
	return s.kv.Remove(profileKey)
}

func (s *ProfileStore) SaveDevice(d domain.Device) error {
	return s.setJSON(deviceKey, d)
}

func (s *ProfileStore) LoadDevice() (domain.Device, bool, error) {
	var d domain.Device
	ok, err := s.getJSON(deviceKey, &d)
	return d, ok, err
}

func (s *ProfileStore) setJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(key, string(raw))
}

func (s *ProfileStore) getJSON(key string, out any) (bool, error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal([]byte(raw), out)
}
