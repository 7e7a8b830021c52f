package screenshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ABWatch/internal/models"
)

// Store writes screenshot artifacts to a configured directory.
// Serving them over HTTP is a collaborator's concern; the store only
// returns the file path for persistence on the failure record.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Save writes data under a collision-resistant name derived from the
// target URL, device type and capture time.
func (s *Store) Save(targetURL string, deviceType models.DeviceType, data []byte) (string, error) {
	now := time.Now().UTC()

	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", targetURL, deviceType, now.UnixNano()))
	name := fmt.Sprintf("%s_%s.png", now.Format("20060102T150405"), hex.EncodeToString(sum[:8]))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}

	s.logger.Debug("screenshot saved", "path", path, "bytes", len(data))
	return path, nil
}
