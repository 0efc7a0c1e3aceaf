package pipeline

import (
	"fmt"
	"strings"
)

// startOffset tracks the last known playback position within a track,
// in milliseconds.
type startOffset struct {
	offsetMs uint32
}

func (s *startOffset) SetMs(ms uint32) { s.offsetMs = ms }

func (s *startOffset) OffsetMs() uint32 { return s.offsetMs }

// OffsetSample converts the cached offset into a sample index at
// sampleRate.
func (s *startOffset) OffsetSample(sampleRate uint32) uint64 {
	return msToSample(uint64(s.offsetMs), sampleRate)
}

// AbsoluteDifference returns |offsetMs - ms|.
func (s *startOffset) AbsoluteDifference(ms uint32) uint32 {
	if s.offsetMs >= ms {
		return s.offsetMs - ms
	}
	return ms - s.offsetMs
}

const maxDurationBytes = 32

// formatDuration renders durationMs as "H:MM:SS[.ms/1000]": hours
// zero-padded to at least two digits (asserted <=99), minutes/seconds
// zero-padded to two digits (minutes asserted <=59, seconds <=60, the
// 60 boundary intentionally permitted, see DESIGN.md), and the
// fractional suffix only when milliseconds are nonzero.
func formatDuration(durationMs uint32) string {
	const msPerSecond = 1000
	const msPerMinute = msPerSecond * 60
	const msPerHour = msPerMinute * 60

	remaining := durationMs
	hours := durationMs / msPerHour
	remaining -= hours * msPerHour
	minutes := remaining / msPerMinute
	remaining -= minutes * msPerMinute
	seconds := remaining / msPerSecond
	remaining -= seconds * msPerSecond
	ms := remaining

	assertf(hours <= 99, "DIDL-Lite duration: hours %d exceeds 99", hours)
	assertf(minutes <= 59, "DIDL-Lite duration: minutes %d exceeds 59", minutes)
	assertf(seconds <= 60, "DIDL-Lite duration: seconds %d exceeds 60", seconds)

	var b strings.Builder
	b.Grow(maxDurationBytes)
	if hours < 10 {
		b.WriteByte('0')
	}
	fmt.Fprintf(&b, "%d:", hours)
	if minutes < 10 {
		b.WriteByte('0')
	}
	fmt.Fprintf(&b, "%d:", minutes)
	if seconds < 10 {
		b.WriteByte('0')
	}
	fmt.Fprintf(&b, "%d", seconds)
	if ms > 0 {
		fmt.Fprintf(&b, ".%d/%d", ms, msPerSecond)
	}
	return b.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// writeDidlLite serializes track metadata into the DIDL-Lite XML
// fragment used as a synthesized Track's metadata blob.
func writeDidlLite(uri string, md Metadata, bitDepth, channels, sampleRate uint32) []byte {
	var b strings.Builder

	b.WriteString(`<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" `)
	b.WriteString(`xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" `)
	b.WriteString(`xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">`)
	b.WriteString(`<item id="0" parentID="0" restricted="True">`)

	b.WriteString("<dc:title>")
	b.WriteString(escapeXML(md.Track))
	b.WriteString("</dc:title>")

	b.WriteString("<upnp:artist>")
	b.WriteString(escapeXML(md.Artist))
	b.WriteString("</upnp:artist>")

	b.WriteString("<upnp:album>")
	b.WriteString(escapeXML(md.Album))
	b.WriteString("</upnp:album>")

	b.WriteString("<upnp:genre>")
	b.WriteString(escapeXML(md.Genre))
	b.WriteString("</upnp:genre>")

	writeRes(&b, uri, md.DurationMs, bitDepth, channels, sampleRate)

	b.WriteString("<upnp:class>object.item.audioItem.musicTrack</upnp:class></item></DIDL-Lite>")
	return []byte(b.String())
}

func writeRes(b *strings.Builder, uri string, durationMs, bitDepth, channels, sampleRate uint32) {
	b.WriteString(`<res duration="`)
	b.WriteString(formatDuration(durationMs))
	b.WriteString(`" protocolInfo="Airplay:*:audio/L16:*"`)

	writeOptionalAttributes(b, durationMs, bitDepth, channels, sampleRate)

	b.WriteByte('>')
	b.WriteString(uri) // the URI is a literal, not escaped
	b.WriteString("</res>")
}

func writeOptionalAttributes(b *strings.Builder, durationMs, bitDepth, channels, sampleRate uint32) {
	if bitDepth != 0 {
		fmt.Fprintf(b, ` bitsPerSample="%d"`, bitDepth)
	}
	if sampleRate != 0 {
		fmt.Fprintf(b, ` sampleFrequency="%d"`, sampleRate)
	}
	if channels != 0 {
		fmt.Fprintf(b, ` nrAudioChannels="%d"`, channels)
	}
	if bitDepth != 0 && channels != 0 && sampleRate != 0 {
		// size = (bitDepth/8) * sampleRate * channels * durationMs / 1000,
		// evaluated in this order, widened to avoid overflow.
		byteDepth := uint64(bitDepth) / 8
		size := byteDepth * uint64(sampleRate) * uint64(channels) * uint64(durationMs) / 1000
		fmt.Fprintf(b, ` size="%d"`, size)
	}
}
