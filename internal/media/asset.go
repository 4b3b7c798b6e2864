package media

import (
	"time"

	"github.com/google/uuid"
)

// AudioTrack describes a single audio stream discovered in a source file.
type AudioTrack struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sampleRate"`
}

// Metadata is the probed shape of a source file. Fields which the probe
// could not determine are nil rather than zero, so a 0-duration file and
// a file whose duration is unknown remain distinguishable.
type Metadata struct {
	DurationSeconds *float64     `json:"durationSeconds"`
	FrameRate       *float64     `json:"fps"`
	Width           *int         `json:"width"`
	Height          *int         `json:"height"`
	AudioTracks     []AudioTrack `json:"audioTracks"`
}

// DerivedAssets records the on-disk location of every artifact produced
// for an asset, along with the cache key their generation was stored under.
type DerivedAssets struct {
	CacheKey            string   `json:"cacheKey"`
	MasterPath          string   `json:"masterPath"`
	NormalizedAudioPath string   `json:"normalizedAudioPath"`
	ProxyPath           string   `json:"proxyPath"`
	WaveformPath        string   `json:"waveformPath"`
	ThumbnailPaths      []string `json:"thumbnailPaths"`
}

// Asset is the persistent record of one ingested media file.
type Asset struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OriginalName string    `db:"original_name" json:"originalName"`
	SourcePath   string    `db:"source_path" json:"sourcePath"`
	SizeBytes    int64     `db:"size_bytes" json:"sizeBytes"`
	ContentHash  string    `db:"content_hash" json:"contentHash"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`

	Metadata *Metadata      `json:"metadata"`
	Derived  *DerivedAssets `json:"derived"`
}
