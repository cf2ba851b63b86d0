// Package hls parses HLS master and media playlists.
package hls

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotPlaylist is returned when the input lacks the #EXTM3U header.
var ErrNotPlaylist = errors.New("hls: missing #EXTM3U header")

// Variant is one rendition listed by a master playlist.
type Variant struct {
	URI        string
	Bandwidth  int
	Resolution string
	Codecs     string
}

// Segment is one media segment of a media playlist.
type Segment struct {
	Sequence uint64
	URI      string
	Duration time.Duration
	PDT      time.Time
}

// Playlist is either a master playlist (Variants set) or a media playlist
// (Segments set).
type Playlist struct {
	Master         bool
	Variants       []Variant
	TargetDuration time.Duration
	MediaSequence  uint64
	Segments       []Segment
	// Ended is set by #EXT-X-ENDLIST or #EXT-X-PLAYLIST-TYPE:VOD.
	Ended bool
}

// TotalDuration sums the EXTINF durations of all segments.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

// Parse reads a playlist and resolves every URI against base. base may be
// nil, in which case URIs are kept as written.
//
// Guards:
//  1. PROGRAM-DATE-TIME must never move backwards
//  2. a live playlist must label either all segments with a PDT or none
func Parse(r io.Reader, base *url.URL) (*Playlist, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pl := &Playlist{}
	var (
		sawHeader       bool
		nextDuration    time.Duration
		nextPDT         time.Time
		lastPDT         time.Time
		pendingVariant  *Variant
		segmentsWithPDT int
		seq             uint64
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, ErrNotPlaylist
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v, err := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			if err != nil {
				return nil, err
			}
			pl.Master = true
			pendingVariant = &v

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("invalid target duration: %s", line)
			}
			pl.TargetDuration = time.Duration(secs) * time.Second

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, err := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid media sequence: %s", line)
			}
			pl.MediaSequence = n
			seq = n

		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"), line == "#EXT-X-ENDLIST":
			pl.Ended = true

		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			raw := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid PDT format: %s", raw)
			}
			if !lastPDT.IsZero() && t.Before(lastPDT) {
				return nil, fmt.Errorf("PDT non-monotonic: %v < %v", t, lastPDT)
			}
			nextPDT = t
			lastPDT = t

		case strings.HasPrefix(line, "#EXTINF:"):
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid EXTINF duration: %s", durPart)
			}
			nextDuration = time.Duration(secs * float64(time.Second))

		case strings.HasPrefix(line, "#"):
			// unknown tags and comments

		default:
			uri, err := resolve(base, line)
			if err != nil {
				return nil, err
			}
			if pendingVariant != nil {
				pendingVariant.URI = uri
				pl.Variants = append(pl.Variants, *pendingVariant)
				pendingVariant = nil
				continue
			}
			seg := Segment{Sequence: seq, URI: uri, Duration: nextDuration, PDT: nextPDT}
			if !nextPDT.IsZero() {
				segmentsWithPDT++
			}
			pl.Segments = append(pl.Segments, seg)
			seq++
			nextDuration = 0
			nextPDT = time.Time{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, ErrNotPlaylist
	}
	if pl.Master && len(pl.Segments) > 0 {
		return nil, errors.New("playlist mixes variants and segments")
	}
	if !pl.Ended && segmentsWithPDT > 0 && segmentsWithPDT != len(pl.Segments) {
		return nil, fmt.Errorf("partial PDT coverage in live playlist (found %d/%d)", segmentsWithPDT, len(pl.Segments))
	}
	return pl, nil
}

// ParseString is Parse over an in-memory playlist.
func ParseString(playlist string, base *url.URL) (*Playlist, error) {
	return Parse(strings.NewReader(playlist), base)
}

// BestVariant returns the highest-bandwidth variant.
func (p *Playlist) BestVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	best := p.Variants[0]
	for _, v := range p.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

func parseStreamInf(attrs string) (Variant, error) {
	var v Variant
	for key, val := range splitAttributes(attrs) {
		switch key {
		case "BANDWIDTH":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Variant{}, fmt.Errorf("invalid BANDWIDTH: %s", val)
			}
			v.Bandwidth = n
		case "RESOLUTION":
			v.Resolution = val
		case "CODECS":
			v.Codecs = val
		}
	}
	return v, nil
}

// splitAttributes splits an attribute list, honouring quoted values.
func splitAttributes(s string) map[string]string {
	out := map[string]string{}
	var (
		key, cur strings.Builder
		inKey    = true
		quoted   bool
	)
	flush := func() {
		if k := strings.TrimSpace(key.String()); k != "" {
			out[k] = strings.Trim(strings.TrimSpace(cur.String()), `"`)
		}
		key.Reset()
		cur.Reset()
		inKey = true
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == '=' && inKey:
			inKey = false
		case r == ',' && !quoted:
			flush()
		case inKey:
			key.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", ref, err)
	}
	if base == nil {
		return u.String(), nil
	}
	return base.ResolveReference(u).String(), nil
}
