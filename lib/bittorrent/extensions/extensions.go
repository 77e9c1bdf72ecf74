package extensions

import (
	"math"

	"github.com/majestrate/slimweb/lib/common"
	"github.com/majestrate/slimweb/lib/sync"
	"github.com/majestrate/slimweb/lib/version"
	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// Extension is a bittorrent extenension string
type Extension string

// String gets extension as string
func (ex Extension) String() string {
	return string(ex)
}

// keys of the extended handshake dict with a meaning of their own
const (
	keyExtensions   = "m"
	keyVersion      = "v"
	keyMetainfoSize = "metadata_size"
)

// Message is a serializable BitTorrent extended message, ID 0 being the extended handshake
type Message struct {
	ID           uint8
	Version      string            // handshake data
	Extensions   map[string]uint32 // handshake data
	MetainfoSize *uint32           // handshake data
	// Fields holds every other byte string key of a handshake, namespaced per extension
	Fields map[string][]byte
}

// IsSupported returns true if an extension by its name is supported.
// An id of 0 means the extension was disabled by the sender.
func (opts Message) IsSupported(ext string) bool {
	id, has := opts.Extensions[ext]
	return has && id != 0
}

// SetSupported sets a bittorrent extension as supported
func (opts *Message) SetSupported(ext Extension) {
	if opts.Extensions == nil {
		opts.Extensions = make(map[string]uint32)
	}
	// get next id
	nextId := uint32(1)
	for k, v := range opts.Extensions {
		if v >= nextId {
			nextId = v + 1
		}
		// already supported
		if k == ext.String() {
			return
		}
	}
	opts.Extensions[ext.String()] = nextId
}

// Lookup finds the extension name of the extension by id
func (opts Message) Lookup(id uint8) (string, bool) {
	for k, v := range opts.Extensions {
		if v == uint32(id) {
			return k, true
		}
	}
	return "", false
}

// Field gets a handshake field by its full key
func (opts Message) Field(name string) (val []byte, has bool) {
	if opts.Fields != nil {
		val, has = opts.Fields[name]
	}
	return
}

// Copy makes a deep copy of this Message
func (opts Message) Copy() Message {
	m := Message{
		ID:      opts.ID,
		Version: opts.Version,
	}
	if opts.Extensions != nil {
		m.Extensions = make(map[string]uint32, len(opts.Extensions))
		for k, v := range opts.Extensions {
			m.Extensions[k] = v
		}
	}
	if opts.MetainfoSize != nil {
		sz := *opts.MetainfoSize
		m.MetainfoSize = &sz
	}
	if opts.Fields != nil {
		m.Fields = make(map[string][]byte, len(opts.Fields))
		for k, v := range opts.Fields {
			m.Fields[k] = append([]byte(nil), v...)
		}
	}
	return m
}

func (opts Message) handshakeDict() map[string]interface{} {
	d := make(map[string]interface{}, len(opts.Fields)+3)
	for k, v := range opts.Fields {
		d[k] = string(v)
	}
	ext := opts.Extensions
	if ext == nil {
		ext = make(map[string]uint32)
	}
	d[keyExtensions] = ext
	if opts.Version != "" {
		d[keyVersion] = opts.Version
	}
	if opts.MetainfoSize != nil {
		d[keyMetainfoSize] = *opts.MetainfoSize
	}
	return d
}

// ToWireMessage serializes this extended handshake to a BitTorrent wire message
func (opts Message) ToWireMessage() (common.WireMessage, error) {
	if opts.ID != 0 {
		return nil, ErrInvalidMessageID
	}
	body, err := bencode.EncodeBytes(opts.handshakeDict())
	if err != nil {
		return nil, err
	}
	return common.NewWireMessage(common.Extended, []byte{opts.ID}, body), nil
}

// New creates new valid handshake Message advertising our version
func New() Message {
	return Message{
		Version:    version.Version(),
		Extensions: make(map[string]uint32),
		Fields:     make(map[string][]byte),
	}
}

var ErrInvalidSize = errors.New("invalid message size")
var ErrInvalidMessageID = errors.New("invalid message id")

func (opts *Message) decodeHandshake(data []byte) error {
	var dict map[string]bencode.RawMessage
	err := bencode.DecodeBytes(data, &dict)
	if err != nil {
		return err
	}
	opts.Extensions = make(map[string]uint32)
	opts.Fields = make(map[string][]byte)
	for k, raw := range dict {
		switch k {
		case keyExtensions:
			var m map[string]interface{}
			if bencode.DecodeBytes(raw, &m) == nil {
				for name, id := range m {
					if n, ok := id.(int64); ok && n >= 0 && n <= math.MaxUint32 {
						opts.Extensions[name] = uint32(n)
					}
				}
			}
		case keyVersion:
			bencode.DecodeBytes(raw, &opts.Version)
		case keyMetainfoSize:
			var sz int64
			if bencode.DecodeBytes(raw, &sz) == nil && sz > 0 {
				u := uint32(sz)
				opts.MetainfoSize = &u
			}
		default:
			// only byte strings are kept, ints and containers belong to extensions we do not know
			if len(raw) == 0 || raw[0] < '0' || raw[0] > '9' {
				continue
			}
			var s string
			if bencode.DecodeBytes(raw, &s) == nil {
				opts.Fields[k] = []byte(s)
			}
		}
	}
	return nil
}

// FromWireMessage loads an extended Message from a BitTorrent wire message
func FromWireMessage(msg common.WireMessage) (opts Message, err error) {
	if msg.MessageID() != common.Extended {
		err = ErrInvalidMessageID
		return
	}
	payload := msg.Payload()
	if len(payload) < 2 {
		err = ErrInvalidSize
		return
	}
	opts.ID = payload[0]
	// only the handshake has a body we understand
	if opts.ID == 0 {
		err = opts.decodeHandshake(payload[1:])
	}
	return
}

// HandshakeFields is the outgoing extended handshake as seen by an extension.
// Fields can be added until the handshake is sent, and never changed afterwards.
type HandshakeFields interface {
	SetField(name, value string) error
}

var ErrHandshakeSealed = errors.New("extended handshake already sent")
var ErrFieldConflict = errors.New("extended handshake field already set to another value")
var ErrReservedField = errors.New("extended handshake field is reserved")

// OutgoingHandshake is our side's extended handshake, merged into once by each extension before it is sent
type OutgoingHandshake struct {
	access sync.Mutex
	msg    Message
	sealed bool
}

// NewOutgoingHandshake creates an unsent handshake advertising our version
func NewOutgoingHandshake() *OutgoingHandshake {
	return &OutgoingHandshake{
		msg: New(),
	}
}

// SetField adds a field to be sent with the handshake
func (h *OutgoingHandshake) SetField(name, value string) error {
	if name == keyExtensions || name == keyVersion || name == keyMetainfoSize {
		return ErrReservedField
	}
	h.access.Lock()
	defer h.access.Unlock()
	if h.sealed {
		return ErrHandshakeSealed
	}
	if old, has := h.msg.Fields[name]; has && string(old) != value {
		return ErrFieldConflict
	}
	h.msg.Fields[name] = []byte(value)
	return nil
}

// SetSupported advertises an extension in the handshake's "m" dict
func (h *OutgoingHandshake) SetSupported(ext Extension) error {
	h.access.Lock()
	defer h.access.Unlock()
	if h.sealed {
		return ErrHandshakeSealed
	}
	h.msg.SetSupported(ext)
	return nil
}

// Field gets a field previously set
func (h *OutgoingHandshake) Field(name string) (string, bool) {
	h.access.Lock()
	defer h.access.Unlock()
	val, has := h.msg.Field(name)
	return string(val), has
}

// Message gets a copy of the handshake as it stands
func (h *OutgoingHandshake) Message() Message {
	h.access.Lock()
	defer h.access.Unlock()
	return h.msg.Copy()
}

// Seal marks the handshake as sent and returns what to send
func (h *OutgoingHandshake) Seal() Message {
	h.access.Lock()
	defer h.access.Unlock()
	h.sealed = true
	return h.msg.Copy()
}

// Sealed returns true once the handshake was sent
func (h *OutgoingHandshake) Sealed() bool {
	h.access.Lock()
	defer h.access.Unlock()
	return h.sealed
}
