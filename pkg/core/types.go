package core

import (
	"fmt"
	"strings"
)

// PublisherType identifies the egress protocol a session was served through.
type PublisherType uint8

// Publisher types. NumberOfPublishers is a sentinel and not a valid type.
const (
	PublisherUnknown PublisherType = iota
	PublisherWebRTC
	PublisherMpegtsPush
	PublisherRtmpPush
	PublisherSrtPush
	PublisherHls
	PublisherLLHls
	PublisherDash
	PublisherLLDash
	PublisherOvt
	PublisherFile
	PublisherThumbnail
	NumberOfPublishers
)

var publisherNames = [NumberOfPublishers]string{
	PublisherUnknown:    "unknown",
	PublisherWebRTC:     "webrtc",
	PublisherMpegtsPush: "mpegts_push",
	PublisherRtmpPush:   "rtmp_push",
	PublisherSrtPush:    "srt_push",
	PublisherHls:        "hls",
	PublisherLLHls:      "llhls",
	PublisherDash:       "dash",
	PublisherLLDash:     "lldash",
	PublisherOvt:        "ovt",
	PublisherFile:       "file",
	PublisherThumbnail:  "thumbnail",
}

// Valid reports whether t is a real publisher type.
func (t PublisherType) Valid() bool {
	return t < NumberOfPublishers
}

func (t PublisherType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("publisher(%d)", uint8(t))
	}
	return publisherNames[t]
}

// PublisherTypes returns every valid publisher type in order.
func PublisherTypes() []PublisherType {
	out := make([]PublisherType, 0, NumberOfPublishers)
	for t := PublisherUnknown; t < NumberOfPublishers; t++ {
		out = append(out, t)
	}
	return out
}

// ParsePublisherType maps a name such as "webrtc" to its PublisherType.
func ParsePublisherType(s string) (PublisherType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PublisherUnknown, nil
	}
	for t, name := range publisherNames {
		if name == s {
			return PublisherType(t), nil
		}
	}
	return PublisherUnknown, fmt.Errorf("unknown publisher type: %q", s)
}

// ProviderType identifies the ingest protocol that announced or produced a stream.
type ProviderType uint8

// Provider types.
const (
	ProviderUnknown ProviderType = iota
	ProviderRtmp
	ProviderRtsp
	ProviderRtspPull
	ProviderOvt
	ProviderMpegts
	ProviderWebRTC
	ProviderSrt
	ProviderFile
	ProviderScheduled
	numberOfProviders
)

var providerNames = [numberOfProviders]string{
	ProviderUnknown:   "unknown",
	ProviderRtmp:      "rtmp",
	ProviderRtsp:      "rtsp",
	ProviderRtspPull:  "rtsp_pull",
	ProviderOvt:       "ovt",
	ProviderMpegts:    "mpegts",
	ProviderWebRTC:    "webrtc",
	ProviderSrt:       "srt",
	ProviderFile:      "file",
	ProviderScheduled: "scheduled",
}

func (p ProviderType) String() string {
	if p >= numberOfProviders {
		return fmt.Sprintf("provider(%d)", uint8(p))
	}
	return providerNames[p]
}

// ParseProviderType maps a name such as "rtmp" to its ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProviderUnknown, nil
	}
	for p, name := range providerNames {
		if name == s {
			return ProviderType(p), nil
		}
	}
	return ProviderUnknown, fmt.Errorf("unknown provider type: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t PublisherType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid publisher type: %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PublisherType) UnmarshalText(b []byte) error {
	v, err := ParsePublisherType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p ProviderType) MarshalText() ([]byte, error) {
	if p >= numberOfProviders {
		return nil, fmt.Errorf("invalid provider type: %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ProviderType) UnmarshalText(b []byte) error {
	v, err := ParseProviderType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
