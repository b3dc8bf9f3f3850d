package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"slices"
	"testing"
)

// DMS is one GPS coordinate as three numerator/denominator pairs.
type DMS [3][2]uint32

// Shenzhen Bao'an coordinates used across tests.
var (
	BaoanLat = DMS{{22, 1}, {39, 1}, {14, 1}}
	BaoanLon = DMS{{113, 1}, {53, 1}, {0, 1}}
)

// EXIF describes the tags written by WriteEXIF. Empty fields are omitted.
type EXIF struct {
	Make     string
	Model    string
	DateTime string // "2006:01:02 15:04:05"
	Width    uint32
	Height   uint32

	LatRef string
	Lat    *DMS
	LonRef string
	Lon    *DMS
}

// WithGPS returns a copy of e carrying a full GPS block.
func (e EXIF) WithGPS(lat DMS, latRef string, lon DMS, lonRef string) EXIF {
	e.Lat, e.LatRef = &lat, latRef
	e.Lon, e.LonRef = &lon, lonRef
	return e
}

// WriteEXIF writes a little-endian TIFF file containing only the requested
// tags. goexif reads such a file the same way as the APP1 block of a JPEG.
func WriteEXIF(t testing.TB, path string, e EXIF) {
	t.Helper()
	mkdirFor(t, path)
	if err := os.WriteFile(path, BuildEXIF(e), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const (
	typeASCII    = 2
	typeLong     = 4
	typeRational = 5

	tagMake             = 0x010F
	tagModel            = 0x0110
	tagDateTime         = 0x0132
	tagExifPointer      = 0x8769
	tagGPSPointer       = 0x8825
	tagDateTimeOriginal = 0x9003
	tagPixelX           = 0xA002
	tagPixelY           = 0xA003
	tagGPSLatRef        = 0x0001
	tagGPSLat           = 0x0002
	tagGPSLonRef        = 0x0003
	tagGPSLon           = 0x0004
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// BuildEXIF encodes e as a TIFF byte stream.
func BuildEXIF(e EXIF) []byte {
	var ifd0, exifIFD, gpsIFD []ifdEntry
	if e.Make != "" {
		ifd0 = append(ifd0, asciiEntry(tagMake, e.Make))
	}
	if e.Model != "" {
		ifd0 = append(ifd0, asciiEntry(tagModel, e.Model))
	}
	if e.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(tagDateTime, e.DateTime))
		exifIFD = append(exifIFD, asciiEntry(tagDateTimeOriginal, e.DateTime))
	}
	if e.Width > 0 {
		exifIFD = append(exifIFD, longEntry(tagPixelX, e.Width))
	}
	if e.Height > 0 {
		exifIFD = append(exifIFD, longEntry(tagPixelY, e.Height))
	}
	if e.LatRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(tagGPSLatRef, e.LatRef))
	}
	if e.Lat != nil {
		gpsIFD = append(gpsIFD, rationalEntry(tagGPSLat, *e.Lat))
	}
	if e.LonRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(tagGPSLonRef, e.LonRef))
	}
	if e.Lon != nil {
		gpsIFD = append(gpsIFD, rationalEntry(tagGPSLon, *e.Lon))
	}

	// Pointer values are patched once the IFD0 size is known; the size does
	// not depend on them.
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longEntry(tagExifPointer, 0))
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(tagGPSPointer, 0))
	}

	const headerLen = 8
	exifOffset := uint32(headerLen + ifdSize(ifd0))
	gpsOffset := exifOffset
	if len(exifIFD) > 0 {
		gpsOffset += uint32(ifdSize(exifIFD))
	}
	for i := range ifd0 {
		switch ifd0[i].tag {
		case tagExifPointer:
			ifd0[i] = longEntry(tagExifPointer, exifOffset)
		case tagGPSPointer:
			ifd0[i] = longEntry(tagGPSPointer, gpsOffset)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(headerLen))
	buf.Write(encodeIFD(ifd0, headerLen))
	if len(exifIFD) > 0 {
		buf.Write(encodeIFD(exifIFD, exifOffset))
	}
	if len(gpsIFD) > 0 {
		buf.Write(encodeIFD(gpsIFD, gpsOffset))
	}
	return buf.Bytes()
}

func asciiEntry(tag uint16, value string) ifdEntry {
	data := append([]byte(value), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

func longEntry(tag uint16, value uint32) ifdEntry {
	data := binary.LittleEndian.AppendUint32(nil, value)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: data}
}

func rationalEntry(tag uint16, value DMS) ifdEntry {
	var data []byte
	for _, pair := range value {
		data = binary.LittleEndian.AppendUint32(data, pair[0])
		data = binary.LittleEndian.AppendUint32(data, pair[1])
	}
	return ifdEntry{tag: tag, typ: typeRational, count: 3, data: data}
}

func ifdSize(entries []ifdEntry) int {
	size := 2 + 12*len(entries) + 4
	for _, e := range entries {
		if len(e.data) > 4 {
			size += padded(len(e.data))
		}
	}
	return size
}

func padded(n int) int {
	return n + n%2
}

// encodeIFD lays out the directory at offset followed by its out-of-line
// values. The next-IFD pointer is always zero.
func encodeIFD(entries []ifdEntry, offset uint32) []byte {
	entries = slices.Clone(entries)
	slices.SortFunc(entries, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	le := binary.LittleEndian
	dir := le.AppendUint16(nil, uint16(len(entries)))
	var extra []byte
	dataOffset := offset + uint32(2+12*len(entries)+4)
	for _, e := range entries {
		dir = le.AppendUint16(dir, e.tag)
		dir = le.AppendUint16(dir, e.typ)
		dir = le.AppendUint32(dir, e.count)
		if len(e.data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.data)
			dir = append(dir, inline...)
			continue
		}
		dir = le.AppendUint32(dir, dataOffset+uint32(len(extra)))
		extra = append(extra, e.data...)
		if len(e.data)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	dir = le.AppendUint32(dir, 0)
	return append(dir, extra...)
}
