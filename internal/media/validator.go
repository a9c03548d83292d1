package media

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// ContainerKind identifies an allow-listed audio/video container family
// detected from file content
type ContainerKind string

const (
	KindWAV  ContainerKind = "wav"
	KindMP3  ContainerKind = "mp3"
	KindM4A  ContainerKind = "m4a"
	KindMP4  ContainerKind = "mp4"
	KindOGG  ContainerKind = "ogg"
	KindOpus ContainerKind = "opus"
	KindFLAC ContainerKind = "flac"
	KindAIFF ContainerKind = "aiff"
	KindWebM ContainerKind = "webm"
	KindAVI  ContainerKind = "avi"
	KindMOV  ContainerKind = "mov"
	KindMKV  ContainerKind = "mkv"
)

// Extension returns the canonical filesystem extension for the kind,
// including the leading dot.
func (k ContainerKind) Extension() string {
	return "." + string(k)
}

// UnsupportedFormatError reports content that did not match any allow-listed
// container family. Detected carries a best-effort description of what the
// content actually is, for the user-facing diagnostic.
type UnsupportedFormatError struct {
	Detected string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported media format: %s", e.Detected)
}

// DetectContainer inspects the leading bytes of an upload and returns the
// allow-listed container kind they belong to. Detection looks at the actual
// content, never at a filename or client-declared type. Unsupported content
// returns an *UnsupportedFormatError naming the detected type.
func DetectContainer(data []byte) (ContainerKind, error) {
	if kind, ok := sniffContainer(data); ok {
		return kind, nil
	}

	detected := http.DetectContentType(data)
	if detected == "application/octet-stream" {
		detected = "unknown binary content"
	}
	return "", &UnsupportedFormatError{Detected: detected}
}

// sniffContainer matches known magic-byte signatures. It reports false for
// anything outside the allow-list.
func sniffContainer(data []byte) (ContainerKind, bool) {
	switch {
	case hasPrefix(data, "RIFF") && hasAt(data, 8, "WAVE"):
		return KindWAV, true
	case hasPrefix(data, "RIFF") && hasAt(data, 8, "AVI "):
		return KindAVI, true
	case hasPrefix(data, "ID3") || isMP3FrameSync(data):
		return KindMP3, true
	case hasPrefix(data, "fLaC"):
		return KindFLAC, true
	case hasPrefix(data, "FORM") && (hasAt(data, 8, "AIFF") || hasAt(data, 8, "AIFC")):
		return KindAIFF, true
	case hasPrefix(data, "OggS"):
		// Opus streams live inside an Ogg page; the codec header sits in
		// the first page payload.
		if bytes.Contains(head(data, 64), []byte("OpusHead")) {
			return KindOpus, true
		}
		return KindOGG, true
	case hasAt(data, 4, "ftyp"):
		return classifyISOBMFF(data), true
	case hasPrefix(data, "\x1aE\xdf\xa3"):
		// EBML header; WebM and Matroska share it and differ in DocType.
		if bytes.Contains(head(data, 64), []byte("webm")) {
			return KindWebM, true
		}
		return KindMKV, true
	default:
		return "", false
	}
}

// classifyISOBMFF distinguishes the MP4 family by its major brand
func classifyISOBMFF(data []byte) ContainerKind {
	brand := ""
	if len(data) >= 12 {
		brand = strings.TrimSpace(string(data[8:12]))
	}
	switch {
	case brand == "M4A":
		return KindM4A
	case brand == "qt":
		return KindMOV
	default:
		return KindMP4
	}
}

// isMP3FrameSync detects a raw MPEG audio frame header (no ID3 tag): 11 sync
// bits followed by a non-reserved version and layer. Covers CRC-protected
// frames as well as the common unprotected ones.
func isMP3FrameSync(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}
	version := (data[1] >> 3) & 0x03
	layer := (data[1] >> 1) & 0x03
	return version != 0x01 && layer != 0x00
}

// ExtensionOrFallback returns the canonical extension for the detected kind.
// When the kind is empty (allowed by an external sniffer but not classified
// here) it falls back to the uploaded filename's extension.
func ExtensionOrFallback(kind ContainerKind, filename string) string {
	if kind != "" {
		return kind.Extension()
	}
	if ext := filepath.Ext(filename); ext != "" {
		return ext
	}
	return ".bin"
}

func hasPrefix(data []byte, sig string) bool {
	return bytes.HasPrefix(data, []byte(sig))
}

func hasAt(data []byte, offset int, sig string) bool {
	if len(data) < offset+len(sig) {
		return false
	}
	return string(data[offset:offset+len(sig)]) == sig
}

func head(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}
