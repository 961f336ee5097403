package binhex_test

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/utilities/binhex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16__KnownValue(t *testing.T) {
	// Standard check value for CRC-16/XMODEM.
	assert.EqualValues(t, 0x31C3, binhex.CRC16(0, []byte("123456789")))
	assert.EqualValues(t, 0, binhex.CRC16(0, nil))
}

func TestEncode__Format(t *testing.T) {
	file := &binhex.File{
		Name:     []byte("Read Me"),
		TypeCode: [4]byte{'T', 'E', 'X', 'T'},
		Data:     bytes.Repeat([]byte("hello "), 50),
	}

	var output bytes.Buffer
	require.NoError(t, binhex.Encode(&output, file))

	lines := strings.Split(strings.TrimRight(output.String(), "\n"), "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, binhex.Banner, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], ":"))
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], ":"))
	for i, line := range lines[1:] {
		assert.LessOrEqualf(t, len(line), 64, "line %d is too long", i+1)
	}
}

func TestRoundTrip(t *testing.T) {
	resource := make([]byte, 1500)
	rand.Read(resource)
	copy(resource[200:], bytes.Repeat([]byte{0x90}, 40))

	original := &binhex.File{
		Name:        []byte("Finder \xa5"),
		TypeCode:    [4]byte{'A', 'P', 'P', 'L'},
		CreatorCode: [4]byte{'M', 'A', 'C', 'S'},
		FinderFlags: 0x0100,
		Data:        make([]byte, 700),
		Resource:    resource,
	}

	var encoded bytes.Buffer
	require.NoError(t, binhex.Encode(&encoded, original))

	decoded, err := binhex.Decode(&encoded)
	require.NoError(t, err)
	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.TypeCode, decoded.TypeCode)
	assert.Equal(t, original.CreatorCode, decoded.CreatorCode)
	assert.Equal(t, original.FinderFlags, decoded.FinderFlags)
	assert.Equal(t, original.Data, decoded.Data)
	assert.Equal(t, original.Resource, decoded.Resource)
}

func TestRoundTrip__EmptyForks(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(t, binhex.Encode(&encoded, &binhex.File{Name: []byte("x")}))

	decoded, err := binhex.Decode(&encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), decoded.Name)
	assert.Empty(t, decoded.Data)
	assert.Empty(t, decoded.Resource)
}

func TestEncode__NameTooLong(t *testing.T) {
	err := binhex.Encode(&bytes.Buffer{}, &binhex.File{Name: bytes.Repeat([]byte("a"), 64)})
	assert.ErrorIs(t, err, mfskit.ErrNameTooLong)

	err = binhex.Encode(&bytes.Buffer{}, &binhex.File{})
	assert.ErrorIs(t, err, mfskit.ErrNameTooLong)
}

func TestDecode__ChecksumMismatch(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(
		t,
		binhex.Encode(&encoded, &binhex.File{Name: []byte("abc"), Data: []byte("some data")}),
	)

	// Flip a character in the middle of the payload to another valid one.
	text := []byte(encoded.String())
	start := bytes.IndexByte(text, ':') + 1
	middle := start + 20
	if text[middle] == '!' {
		text[middle] = '"'
	} else {
		text[middle] = '!'
	}

	_, err := binhex.Decode(bytes.NewReader(text))
	assert.Error(t, err)
}

func TestDecode__NoData(t *testing.T) {
	_, err := binhex.Decode(strings.NewReader(binhex.Banner + "\n"))
	assert.ErrorIs(t, err, mfskit.ErrInvalidArgument)
}
