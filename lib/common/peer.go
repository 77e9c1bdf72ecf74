package common

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/url"

	"github.com/majestrate/slimweb/lib/version"
)

// PeerID is a buffer for bittorrent peerid
type PeerID [20]byte

// Bytes gets buffer as byteslice
func (id PeerID) Bytes() []byte {
	return id[:]
}

// GeneratePeerID generates a new azureus style peer id
func GeneratePeerID() (id PeerID) {
	io.ReadFull(rand.Reader, id[:])
	v := "-SW" + version.Major + version.Minor + version.Patch + "0-"
	copy(id[:], v)
	return
}

// encode to string
func (id PeerID) String() string {
	return url.QueryEscape(string(id.Bytes()))
}

// Infohash is a bittorrent v1 infohash
type Infohash [20]byte

// Hex gets hex representation
func (ih Infohash) Hex() string {
	return hex.EncodeToString(ih.Bytes())
}

// Bytes gets underlying byteslice
func (ih Infohash) Bytes() []byte {
	return ih[:]
}

func (ih Infohash) String() string {
	return ih.Hex()
}

// ErrBadInfohash is returned when parsing a malformed hex infohash
var ErrBadInfohash = errors.New("infohash must be 40 hex characters")

// DecodeInfohash parses a hex encoded infohash
func DecodeInfohash(str string) (ih Infohash, err error) {
	var b []byte
	b, err = hex.DecodeString(str)
	if err == nil && len(b) != len(ih) {
		err = ErrBadInfohash
	}
	if err == nil {
		copy(ih[:], b)
	} else {
		err = ErrBadInfohash
	}
	return
}
