package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chenzhangda16/web3-feed/pkg/hash"
)

const ManifestName = "manifest.json"

// Manifest records what a run read, how it was parameterised and what it wrote.
type Manifest struct {
	RunID       string            `json:"run_id"`
	BootID      string            `json:"boot_id,omitempty"`
	Fingerprint hash.Hash32       `json:"fingerprint"`
	Params      Params            `json:"params"`
	NowHours    float64           `json:"now_hours"`
	Inputs      map[string]int    `json:"inputs"`
	Datasets    map[string]string `json:"datasets"`

	VicinitySize int `json:"vicinity_size"`
	Rounds       int `json:"rounds"`
	TopicCount   int `json:"topic_count"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// WriteManifest replaces dir/manifest.json via a temp file and rename.
func WriteManifest(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ManifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadManifest returns ok=false when dir has no manifest yet.
func ReadManifest(dir string) (Manifest, bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("manifest %s: %w", dir, err)
	}
	return m, true, nil
}
