package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/stardrift/server/internal/streaming"
	"github.com/stardrift/server/internal/worldmap"
)

// FormatVersion is bumped whenever the snapshot layout changes
// incompatibly. Decode rejects unknown versions instead of guessing.
const FormatVersion = 1

// Snapshot is a point-in-time capture of the streamed world. Chunk content
// is regenerable from the seed; the snapshot exists so a restarted server
// can resume with the same seed, observer position and loaded set without
// waiting for the streaming window to refill.
type Snapshot struct {
	Version        int                     `json:"version"`
	Seed           int64                   `json:"seed"`
	SavedAt        time.Time               `json:"saved_at"`
	PlayerPosition worldmap.Point          `json:"player_position"`
	Chunks         []streaming.ChunkExport `json:"chunks,omitempty"`
}

// Codec encodes snapshots as zstd-compressed JSON.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec builds a codec at the given zstd compression level (1 fastest,
// 4 best; out-of-range levels are clamped by the encoder).
func NewCodec(level int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode serializes and compresses a snapshot.
func (c *Codec) Encode(snapshot *Snapshot) ([]byte, error) {
	snapshot.Version = FormatVersion
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return c.encoder.EncodeAll(payload, nil), nil
}

// Decode decompresses and parses snapshot bytes, rejecting unknown format
// versions.
func (c *Codec) Decode(data []byte) (*Snapshot, error) {
	payload, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snapshot.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	return &snapshot, nil
}
