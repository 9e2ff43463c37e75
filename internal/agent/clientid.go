package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"fleetd/internal/common/fsutil"
)

// LoadOrCreateClientID returns the client id stored at path, creating and
// storing a new one when the file does not exist yet.
func LoadOrCreateClientID(path string) (uuid.UUID, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return uuid.Nil, err
	}
	if fsutil.PathExists(path) {
		b, err := os.ReadFile(path)
		if err != nil {
			return uuid.Nil, err
		}
		id, err := uuid.Parse(strings.TrimSpace(string(b)))
		if err != nil {
			return uuid.Nil, fmt.Errorf("client id file %s: %w", path, err)
		}
		return id, nil
	}
	id := uuid.New()
	if err := fsutil.WriteFileAtomic(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
