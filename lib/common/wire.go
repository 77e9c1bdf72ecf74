package common

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/majestrate/slimweb/lib/log"
)

// WireMessageType is type for wire message id
type WireMessageType byte

// Choke is message id for choke message
const Choke = WireMessageType(0)

// UnChoke is message id for unchoke message
const UnChoke = WireMessageType(1)

// Interested is messageid for interested message
const Interested = WireMessageType(2)

// NotInterested is messageid for not-interested message
const NotInterested = WireMessageType(3)

// Have is messageid for have message
const Have = WireMessageType(4)

// Extended is messageid for BEP 10 extended messages
const Extended = WireMessageType(20)

// special for invalid
const Invalid = WireMessageType(255)

func (t WireMessageType) Byte() byte {
	return byte(t)
}

// String returns a string name of this wire message id
func (t WireMessageType) String() string {
	switch t {
	case Choke:
		return "Choke"
	case UnChoke:
		return "UnChoke"
	case Interested:
		return "Interested"
	case NotInterested:
		return "NotInterested"
	case Have:
		return "Have"
	case Extended:
		return "Extended"
	case Invalid:
		return "INVALID"
	default:
		return fmt.Sprintf("??? (%d)", uint8(t))
	}
}

// WireMessage is a serializable bittorrent wire message
type WireMessage []byte

// KeepAlive makes a WireMessage of size 0
var KeepAlive = WireMessage([]byte{0, 0, 0, 0})

// NewWireMessage creates new wire message with id and many byteslices for the body
func NewWireMessage(id WireMessageType, bodyParts ...[]byte) (msg WireMessage) {
	l := uint32(1)
	for idx := range bodyParts {
		l += uint32(len(bodyParts[idx]))
	}
	msg = make(WireMessage, 4+l)
	binary.BigEndian.PutUint32(msg[:], l)
	msg[4] = id.Byte()
	i := 5
	for idx := range bodyParts {
		copy(msg[i:], bodyParts[idx])
		i += len(bodyParts[idx])
	}
	return
}

// MaxWireMessageSize is the biggest message body we will buffer, extended handshakes included
const MaxWireMessageSize = 32 * 1024

// ReadWireMessages reads wire messages from r and calls f on each until r fails or f returns an error.
// buff must be at least MaxWireMessageSize + 4 bytes and is reused between messages.
func ReadWireMessages(r io.Reader, f func(WireMessage) error, buff []byte) (err error) {
	for err == nil {
		hdr := buff[:4]
		_, err = io.ReadFull(r, hdr)
		if err != nil {
			break
		}
		l := binary.BigEndian.Uint32(hdr)
		if l == 0 {
			err = f(buff[:4])
		} else if l > MaxWireMessageSize {
			log.Warnf("message too big, discarding %d bytes", l)
			_, err = io.CopyN(io.Discard, r, int64(l))
		} else {
			body := buff[4 : 4+l]
			_, err = io.ReadFull(r, body)
			if err == nil {
				err = f(buff[:4+l])
			}
		}
	}
	return
}

// KeepAlive returns true if this message is a keepalive message
func (msg WireMessage) KeepAlive() bool {
	return len(msg) == 4
}

// Payload returns a byteslice for the body of this message
func (msg WireMessage) Payload() []byte {
	if len(msg) > 5 {
		return msg[5:]
	}
	return nil
}

// MessageID returns the id of this message
func (msg WireMessage) MessageID() WireMessageType {
	if len(msg) > 4 {
		return WireMessageType(msg[4])
	}
	return Invalid
}

// NewChoke creates a new Choke message
func NewChoke() WireMessage {
	return NewWireMessage(Choke)
}

// NewUnChoke creates a new UnChoke message
func NewUnChoke() WireMessage {
	return NewWireMessage(UnChoke)
}

// NewInterested creates a new Interested message
func NewInterested() WireMessage {
	return NewWireMessage(Interested)
}
