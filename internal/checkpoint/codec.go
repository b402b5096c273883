package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// SchemaVersion is the envelope version written by Encode.
const SchemaVersion = 1

var (
	// ErrCorrupt marks a blob that cannot be decoded or fails its checksum.
	ErrCorrupt = errors.New("checkpoint corrupt")
	// ErrUnsupportedVersion marks a blob written by a newer schema.
	ErrUnsupportedVersion = errors.New("checkpoint schema version unsupported")
)

// Digester seals and verifies envelope bodies.
type Digester interface {
	screener.Hasher
	Verify(data []byte, digest string) bool
}

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Checksum      string          `json:"checksum"`
	Body          json.RawMessage `json:"body"`
}

// Encode serializes cp into a sealed envelope. Result payloads are re-encoded
// compactly, so a round trip preserves their JSON value, not their bytes.
func Encode(cp screener.Checkpoint, d Digester) ([]byte, error) {
	if cp.Processed == nil {
		cp.Processed = []screener.WorkItem{}
	}
	if cp.Results == nil {
		cp.Results = []screener.Result{}
	}
	body, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint body: %w", err)
	}
	sum, err := d.Hash(body)
	if err != nil {
		return nil, fmt.Errorf("hash checkpoint body: %w", err)
	}
	out, err := json.Marshal(envelope{
		SchemaVersion: SchemaVersion,
		Checksum:      sum,
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint envelope: %w", err)
	}
	return out, nil
}

// Decode parses and verifies an envelope. Unknown body fields are ignored.
func Decode(data []byte, d Digester) (*screener.Checkpoint, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch {
	case env.SchemaVersion > SchemaVersion:
		return nil, fmt.Errorf("%w: got %d, support up to %d", ErrUnsupportedVersion, env.SchemaVersion, SchemaVersion)
	case env.SchemaVersion < 1:
		return nil, fmt.Errorf("%w: missing schema_version", ErrCorrupt)
	case len(env.Body) == 0:
		return nil, fmt.Errorf("%w: missing body", ErrCorrupt)
	case !d.Verify(env.Body, env.Checksum):
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	var cp screener.Checkpoint
	if err := json.Unmarshal(env.Body, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &cp, nil
}
