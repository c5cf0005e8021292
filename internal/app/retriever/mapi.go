package retriever

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/unicode"
)

// MAPI property identifiers read from .msg files.
const (
	propSubject             uint16 = 0x0037
	propClientSubmitTime    uint16 = 0x0039
	propReplyRecipientNames uint16 = 0x0050
	propTransportHeaders    uint16 = 0x007D
	propSenderName          uint16 = 0x0C1A
	propSenderEmail         uint16 = 0x0C1F
	propDisplayBCC          uint16 = 0x0E02
	propDisplayCC           uint16 = 0x0E03
	propDisplayTo           uint16 = 0x0E04
	propDeliveryTime        uint16 = 0x0E06
	propBody                uint16 = 0x1000
	propBodyHTML            uint16 = 0x1013
	propAttachData          uint16 = 0x3701
	propAttachFilename      uint16 = 0x3704
	propAttachMethod        uint16 = 0x3705
	propAttachLongFilename  uint16 = 0x3707
	propAttachMimeTag       uint16 = 0x370E
)

// MAPI property types.
const (
	typeInt32   uint16 = 0x0003
	typeObject  uint16 = 0x000D
	typeString8 uint16 = 0x001E
	typeUnicode uint16 = 0x001F
	typeSysTime uint16 = 0x0040
	typeBinary  uint16 = 0x0102
)

// Header sizes of the fixed-length property stream.
const (
	rootPropsHeader  = 32
	childPropsHeader = 8
	propEntrySize    = 16
)

const propertiesStream = "__properties_version1.0"

// filetimeEpoch is 1970-01-01 in 100ns intervals since 1601-01-01.
const filetimeEpoch = 116444736000000000

func streamName(id, typ uint16) string {
	return fmt.Sprintf("__substg1.0_%04X%04X", id, typ)
}

// stringProp reads a variable-length string property in either encoding.
func (s *storage) stringProp(id uint16) (string, bool) {
	if b, ok := s.streams[streamName(id, typeUnicode)]; ok {
		return decodeUTF16(b), true
	}
	if b, ok := s.streams[streamName(id, typeString8)]; ok {
		return decode8Bit(b), true
	}
	return "", false
}

func (s *storage) binaryProp(id uint16) ([]byte, bool) {
	b, ok := s.streams[streamName(id, typeBinary)]
	return b, ok
}

// objectProp returns the sub-storage holding an embedded object.
func (s *storage) objectProp(id uint16) (*storage, bool) {
	c, ok := s.children[streamName(id, typeObject)]
	return c, ok
}

// fixedProp returns the 8 value bytes of a fixed-length property.
func (s *storage) fixedProp(headerSize int, id, typ uint16) ([]byte, bool) {
	data, ok := s.streams[propertiesStream]
	if !ok || len(data) < headerSize {
		return nil, false
	}

	want := uint32(id)<<16 | uint32(typ)
	for off := headerSize; off+propEntrySize <= len(data); off += propEntrySize {
		if binary.LittleEndian.Uint32(data[off:]) == want {
			return data[off+8 : off+16], true
		}
	}
	return nil, false
}

func (s *storage) timeProp(headerSize int, id uint16) (time.Time, bool) {
	v, ok := s.fixedProp(headerSize, id, typeSysTime)
	if !ok {
		return time.Time{}, false
	}

	ft := binary.LittleEndian.Uint64(v)
	if ft <= filetimeEpoch {
		return time.Time{}, false
	}
	return time.Unix(0, int64(ft-filetimeEpoch)*100).UTC(), true
}

func (s *storage) int32Prop(headerSize int, id uint16) (int32, bool) {
	v, ok := s.fixedProp(headerSize, id, typeInt32)
	if !ok {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(v)), true
}

func decodeUTF16(b []byte) string {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// decode8Bit decodes a code page string. UTF-8 is kept as-is, anything
// else is read as windows-1252.
func decode8Bit(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	if utf8.Valid(b) {
		return string(b)
	}

	r, err := charset.Reader("windows-1252", bytes.NewReader(b))
	if err != nil {
		return string(b)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(b)
	}
	return string(out)
}
