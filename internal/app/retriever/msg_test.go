package retriever

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/TroyWilliams3687/email-to-markdown/internal/pkg/logger"
)

func utf16le(t *testing.T, s string) []byte {
	t.Helper()

	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return append(b, 0, 0)
}

func setString(t *testing.T, s *storage, id uint16, value string) {
	t.Helper()
	s.streams[streamName(id, typeUnicode)] = utf16le(t, value)
}

// propertiesWithTime builds a fixed property stream holding one PT_SYSTIME value.
func propertiesWithTime(headerSize int, id uint16, ts time.Time) []byte {
	buf := make([]byte, headerSize+propEntrySize)
	off := headerSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(id)<<16|uint32(typeSysTime))
	binary.LittleEndian.PutUint32(buf[off+4:], 0x06)
	binary.LittleEndian.PutUint64(buf[off+8:], uint64(ts.UnixNano()/100)+filetimeEpoch)
	return buf
}

func newTestMSG(t *testing.T) *storage {
	t.Helper()

	root := newStorage(rootEntryName)
	setString(t, root, propSubject, "Quarterly report")
	setString(t, root, propDisplayTo, "Bob Smith")
	setString(t, root, propDisplayCC, "")
	setString(t, root, propSenderName, "Alice")
	setString(t, root, propSenderEmail, "alice@example.com")
	setString(t, root, propBody, "Numbers attached.\r\n")
	root.streams[propertiesStream] = propertiesWithTime(
		rootPropsHeader, propClientSubmitTime, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	)

	pdf := root.child("__attach_version1.0_#00000000")
	setString(t, pdf, propAttachLongFilename, "report.pdf")
	setString(t, pdf, propAttachMimeTag, "application/pdf")
	pdf.streams[streamName(propAttachData, typeBinary)] = []byte("%PDF-1.4")

	png := root.child("__attach_version1.0_#00000001")
	setString(t, png, propAttachMimeTag, "image/png")
	png.streams[streamName(propAttachData, typeBinary)] = []byte("\x89PNG\r\n\x1a\n")

	embedded := root.child("__attach_version1.0_#00000002")
	nested := embedded.child(streamName(propAttachData, typeObject))
	setString(t, nested, propSubject, "Forwarded")
	inner := nested.child("__attach_version1.0_#00000000")
	setString(t, inner, propAttachFilename, "inner.txt")
	inner.streams[streamName(propAttachData, typeBinary)] = []byte("inner")

	return root
}

func TestParseMSG(t *testing.T) {
	msg, err := parseMSG(context.Background(), newTestMSG(t), testOptions(nil), Policy{FlattenNested: true})
	require.NoError(t, err)

	require.NotNil(t, msg.Header.Subject)
	assert.Equal(t, "Quarterly report", *msg.Header.Subject)
	require.NotNil(t, msg.Header.To)
	assert.Equal(t, "Bob Smith", *msg.Header.To)
	require.NotNil(t, msg.Header.From)
	assert.Equal(t, "Alice <alice@example.com>", *msg.Header.From)
	require.NotNil(t, msg.Header.Date)
	assert.Equal(t, "Tue, 02 Jan 2024 03:04:05 +0000", *msg.Header.Date)
	require.NotNil(t, msg.Header.CC)
	assert.Equal(t, "", *msg.Header.CC)
	require.NotNil(t, msg.Header.Sender)
	assert.Equal(t, "Alice <alice@example.com>", *msg.Header.Sender)
	assert.Nil(t, msg.Header.BCC)
	assert.Nil(t, msg.Header.ReplyTo)

	assert.Equal(t, "Numbers attached.", msg.Body)

	require.Len(t, msg.Attachments, 3)
	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4"), msg.Attachments[0].Data)
	assert.Equal(t, "attachment_1.png", msg.Attachments[1].Filename)
	assert.Equal(t, "inner.txt", msg.Attachments[2].Filename)
	assert.Equal(t, []byte("inner"), msg.Attachments[2].Data)
}

func TestParseMSGWithoutFlattening(t *testing.T) {
	rec := &logger.Recorder{}

	msg, err := parseMSG(context.Background(), newTestMSG(t), testOptions(rec), Policy{})
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, 1, rec.Count(logger.SeverityWarn))
}

func TestParseMSGTransportHeaders(t *testing.T) {
	root := newStorage(rootEntryName)
	setString(t, root, propSubject, "Hello")
	setString(t, root, propSenderName, "Ignored")
	setString(t, root, propTransportHeaders,
		"Date: Wed, 3 Jan 2024 08:00:00 +0000\r\nFrom: Alice <alice@example.com>\r\nReply-To: team@example.com\r\nSender: relay@example.com\r\n")

	msg, err := parseMSG(context.Background(), root, testOptions(nil), Policy{})
	require.NoError(t, err)

	require.NotNil(t, msg.Header.Date)
	assert.Equal(t, "Wed, 3 Jan 2024 08:00:00 +0000", *msg.Header.Date)
	require.NotNil(t, msg.Header.From)
	assert.Equal(t, "Alice <alice@example.com>", *msg.Header.From)
	require.NotNil(t, msg.Header.ReplyTo)
	assert.Equal(t, "team@example.com", *msg.Header.ReplyTo)
	require.NotNil(t, msg.Header.Sender)
	assert.Equal(t, "relay@example.com", *msg.Header.Sender)
	assert.Empty(t, msg.Header.Others)
}

func TestParseMSGHTMLBody(t *testing.T) {
	tests := []struct {
		mode HTMLMode
		want string
	}{
		{mode: HTMLPassthrough, want: "<h1>Hi</h1><p>there</p>"},
		{mode: HTMLMarkdown, want: "# Hi\n\nthere"},
		{mode: HTMLText},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			root := newStorage(rootEntryName)
			setString(t, root, propSubject, "html")
			root.streams[streamName(propBodyHTML, typeBinary)] = []byte("<h1>Hi</h1><p>there</p>")

			opts := testOptions(nil)
			opts.HTMLMode = tt.mode

			msg, err := parseMSG(context.Background(), root, opts, Policy{})
			require.NoError(t, err)
			if tt.want == "" {
				assert.Contains(t, msg.Body, "Hi")
				assert.Contains(t, msg.Body, "there")
				assert.NotContains(t, msg.Body, "<")
				return
			}
			assert.Equal(t, tt.want, msg.Body)
		})
	}
}

func TestParseMSG8BitStrings(t *testing.T) {
	root := newStorage(rootEntryName)
	root.streams[streamName(propSubject, typeString8)] = []byte("caf\xe9\x00")

	msg, err := parseMSG(context.Background(), root, testOptions(nil), Policy{})
	require.NoError(t, err)

	require.NotNil(t, msg.Header.Subject)
	assert.Equal(t, "café", *msg.Header.Subject)
}

func TestParseMSGRejectsNonMessage(t *testing.T) {
	root := newStorage(rootEntryName)
	root.streams["WordDocument"] = []byte("x")

	_, err := parseMSG(context.Background(), root, testOptions(nil), Policy{})
	assert.Error(t, err)
}

func TestReadCompoundFileRejectsGarbage(t *testing.T) {
	_, err := readCompoundFile(bytes.NewReader([]byte("definitely not a compound file")))
	assert.Error(t, err)

	_, err = ParseMSG(context.Background(), bytes.NewReader(nil), testOptions(nil))
	assert.Error(t, err)
}

func TestStorageChildrenWithPrefix(t *testing.T) {
	root := newStorage(rootEntryName)
	root.child("__attach_version1.0_#00000002")
	root.child("__recip_version1.0_#00000000")
	root.child("__attach_version1.0_#00000000")
	root.descend([]string{"__attach_version1.0_#00000001", "inner"})

	got := root.childrenWithPrefix(attachStoragePrefix)
	require.Len(t, got, 3)
	assert.Equal(t, "__attach_version1.0_#00000000", got[0].name)
	assert.Equal(t, "__attach_version1.0_#00000001", got[1].name)
	assert.Equal(t, "__attach_version1.0_#00000002", got[2].name)
	assert.Contains(t, got[1].children, "inner")
}

func TestReadCompoundFileOutlook(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "outlook.msg"))
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	root, err := readCompoundFile(f)
	require.NoError(t, err)
	assert.Equal(t, rootEntryName, root.name)
	assert.Contains(t, root.streams, propertiesStream)

	attachments := root.childrenWithPrefix(attachStoragePrefix)
	require.Len(t, attachments, 2)
	for _, a := range attachments {
		assert.Contains(t, a.streams, propertiesStream)
	}
}

func TestGetMailOutlookFile(t *testing.T) {
	rec := &logger.Recorder{}
	msg, err := NewMSGRetriever(testOptions(rec)).GetMail(context.Background(), filepath.Join("testdata", "outlook.msg"))
	require.NoError(t, err)

	require.NotNil(t, msg.Header.Subject)
	assert.Equal(t, "test", *msg.Header.Subject)
	require.NotNil(t, msg.Header.Date)
	assert.Equal(t, "Mon, 18 Nov 2013 08:26:09 +1100", *msg.Header.Date)
	require.NotNil(t, msg.Header.To)
	assert.Equal(t, "Lehane, Richard", *msg.Header.To)
	require.NotNil(t, msg.Header.From)
	assert.Contains(t, *msg.Header.From, "Richard.Lehane@records.nsw.gov.au")
	require.NotNil(t, msg.Header.Sender)
	assert.Equal(t, *msg.Header.From, *msg.Header.Sender)
	require.NotNil(t, msg.Header.CC)
	assert.Empty(t, *msg.Header.CC)
	assert.True(t, strings.HasPrefix(msg.Body, "Test"))

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "test.doc", msg.Attachments[0].Filename)
	assert.True(t, bytes.HasPrefix(msg.Attachments[0].Data, []byte{0xd0, 0xcf, 0x11, 0xe0}))
	assert.Equal(t, "image001.gif", msg.Attachments[1].Filename)
	assert.True(t, bytes.HasPrefix(msg.Attachments[1].Data, []byte("GIF89a")))
	assert.Empty(t, rec.Entries())
}
