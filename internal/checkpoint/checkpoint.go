package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
)

// Manager bundles the manifest and the settings-fingerprint file under
// one <config_dir>, implementing §4.7.3's startup compatibility check on
// top of the lower-level Manifest and ComputeSettingsHash primitives.
type Manager struct {
	Manifest       *Manifest
	fingerprintPath string
}

// NewManager constructs a Manager rooted at configDir, matching the
// persisted-state layout named in §6 (manifest.json,
// settings_fingerprint.hex).
func NewManager(configDir string) *Manager {
	return &Manager{
		Manifest:        NewManifest(filepath.Join(configDir, "manifest.json")),
		fingerprintPath: filepath.Join(configDir, "settings_fingerprint.hex"),
	}
}

// CheckCompatibility computes the fingerprint for the current settings
// and compares it to the last-persisted one. incompatible is true when
// they differ (including when no prior fingerprint exists), signaling
// the caller to run prime_index(force_reindex=true) per §4.7.3.
func (m *Manager) CheckCompatibility(s Settings) (fingerprint string, incompatible bool, err error) {
	fingerprint, err = ComputeSettingsHash(s)
	if err != nil {
		return "", false, err
	}

	previous, readErr := os.ReadFile(m.fingerprintPath)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return fingerprint, true, nil
		}
		return "", false, readErr
	}

	return fingerprint, strings.TrimSpace(string(previous)) != fingerprint, nil
}

// PersistFingerprint atomically writes fingerprint as the new
// last-known-good checkpoint.
func (m *Manager) PersistFingerprint(fingerprint string) error {
	return atomicWriteFile(m.fingerprintPath, []byte(fingerprint))
}
