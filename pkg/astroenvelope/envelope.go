package astroenvelope

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

// ContentType is the media type of a serialized Envelope.
const ContentType = "application/xml"

// Envelope is a captured image ready for delivery. Its fields are fixed at
// construction; only accessors are exposed.
type Envelope struct {
	timestampMs uint32
	dateTime    string
	imageBase64 string
}

// document mirrors the wire layout; field order is the element order.
type document struct {
	XMLName     xml.Name `xml:"ImageData"`
	Timestamp   string   `xml:"Timestamp"`
	DateTime    string   `xml:"DateTime"`
	ImageBase64 string   `xml:"ImageBase64"`
}

// TimestampMs is the device-relative capture time.
func (e Envelope) TimestampMs() uint32 { return e.timestampMs }

// DateTime is the local wall clock at capture, "YYYYMMDD HHMMSSmmm".
func (e Envelope) DateTime() string { return e.dateTime }

// ImageBase64 is the base64 encoded JPEG.
func (e Envelope) ImageBase64() string { return e.imageBase64 }

// Image decodes the JPEG bytes carried by the envelope.
func (e Envelope) Image() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.imageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode envelope image: %w", err)
	}
	return data, nil
}

// Bytes serializes the envelope as an ImageData XML document.
func (e Envelope) Bytes() ([]byte, error) {
	doc := document{
		Timestamp:   strconv.FormatUint(uint64(e.timestampMs), 10),
		DateTime:    e.dateTime,
		ImageBase64: e.imageBase64,
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: marshal document: %w", ErrEncode, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Parse reads an ImageData document back into an Envelope.
func Parse(data []byte) (Envelope, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	ts, err := strconv.ParseUint(doc.Timestamp, 10, 32)
	if err != nil {
		return Envelope{}, fmt.Errorf("parse envelope timestamp %q: %w", doc.Timestamp, err)
	}
	return Envelope{
		timestampMs: uint32(ts),
		dateTime:    doc.DateTime,
		imageBase64: doc.ImageBase64,
	}, nil
}

// New builds an Envelope from already encoded parts.
func New(timestampMs uint32, capturedAt time.Time, imageBase64 string) Envelope {
	return Envelope{
		timestampMs: timestampMs,
		dateTime:    FormatDateTime(capturedAt),
		imageBase64: imageBase64,
	}
}

// FormatDateTime renders t in local time as "YYYYMMDD HHMMSS" followed by a
// 3-digit millisecond suffix.
func FormatDateTime(t time.Time) string {
	t = t.Local()
	return fmt.Sprintf("%s%03d", t.Format("20060102 150405"), t.Nanosecond()/int(time.Millisecond))
}
