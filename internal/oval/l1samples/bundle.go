package l1samples

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
)

// DateLayout is the layout of the bundle's date field.
const DateLayout = "2006-01-02"

// maxBundleSize caps how much decompressed input DecodeDay will read.
const maxBundleSize = 512 * 1024 * 1024

// EpochSamples holds the samples observed at one epoch timestamp.
type EpochSamples struct {
	Time   time.Time     `json:"time"`
	Points []SamplePoint `json:"points"`
}

// TrackPoint is one satellite ground-track position.
type TrackPoint struct {
	Time time.Time `json:"time"`
	Lon  float64   `json:"lon"`
	Lat  float64   `json:"lat"`
}

// TrackRecord is the ground track of one satellite as seen from one station,
// already aligned to the epoch grid.
type TrackRecord struct {
	Station   string       `json:"station"`
	Satellite string       `json:"satellite"`
	Samples   []TrackPoint `json:"samples"`
}

// Bundle is one day of pipeline input.
type Bundle struct {
	Date   time.Time
	Epochs []EpochSamples
	Tracks []TrackRecord
}

type bundleJSON struct {
	Date   string         `json:"date"`
	Epochs []EpochSamples `json:"epochs"`
	Tracks []TrackRecord  `json:"tracks"`
}

// DecodeDay reads a JSON day bundle from r. Gzip input is detected from its
// magic bytes and decompressed transparently. Epochs are returned in
// chronological order with times normalised to UTC.
func DecodeDay(r io.Reader) (*Bundle, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	var raw bundleJSON
	dec := json.NewDecoder(io.LimitReader(src, maxBundleSize))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode day bundle: %w", err)
	}

	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid bundle date %q: %w", raw.Date, err)
	}

	b := &Bundle{Date: date.UTC(), Epochs: raw.Epochs, Tracks: raw.Tracks}
	for i := range b.Epochs {
		b.Epochs[i].Time = b.Epochs[i].Time.UTC()
	}
	for i := range b.Tracks {
		for j := range b.Tracks[i].Samples {
			b.Tracks[i].Samples[j].Time = b.Tracks[i].Samples[j].Time.UTC()
		}
	}
	sort.SliceStable(b.Epochs, func(i, j int) bool {
		return b.Epochs[i].Time.Before(b.Epochs[j].Time)
	})
	return b, nil
}

// EncodeDay writes b as JSON, gzip-compressed when compress is set.
func EncodeDay(w io.Writer, b *Bundle, compress bool) error {
	raw := bundleJSON{
		Date:   b.Date.UTC().Format(DateLayout),
		Epochs: b.Epochs,
		Tracks: b.Tracks,
	}
	if !compress {
		return json.NewEncoder(w).Encode(raw)
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(raw); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode day bundle: %w", err)
	}
	return zw.Close()
}

// LoadDay opens and decodes a bundle file (.json or .json.gz).
func LoadDay(path string) (*Bundle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open day bundle: %w", err)
	}
	defer f.Close()

	b, err := DecodeDay(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
