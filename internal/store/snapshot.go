package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"fleetd/internal/common/fsutil"
	"fleetd/pkg/types"
)

const snapshotVersion = 1

// ErrSnapshotVersion is returned when a snapshot was written by an
// incompatible version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Snapshot is the file format of `fleetd nodes export`.
type Snapshot struct {
	Version   int          `cbor:"1,keyasint"`
	CreatedOn time.Time    `cbor:"2,keyasint"`
	Nodes     []types.Node `cbor:"3,keyasint"`
}

// WriteSnapshot writes nodes to path as CBOR, replacing the file atomically.
func WriteSnapshot(path string, nodes []types.Node, now time.Time) error {
	var buf bytes.Buffer
	enc := encMode.NewEncoder(&buf)
	if err := enc.Encode(Snapshot{Version: snapshotVersion, CreatedOn: now, Nodes: nodes}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o600)
}

// ReadSnapshot reads a file written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	var s Snapshot
	if err := decMode.NewDecoder(f).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return s, nil
}
