package extensions

import (
	"fmt"
	"strings"

	"github.com/majestrate/slimweb/lib/bittorrent"
	"github.com/majestrate/slimweb/lib/common"
	"github.com/majestrate/slimweb/lib/log"
	"github.com/majestrate/slimweb/lib/sync"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// WTSlimWeb is the bittorrent extension for exchanging slimweb client metadata during the extended handshake
const WTSlimWeb = Extension("wt_slimweb")

// handshake keys carrying slimweb fields
const (
	SlimWebClientVer   = "slmweb_client_ver"
	SlimWebTorrentType = "slmweb_torrent_type"
	SlimWebPayload     = "slmweb_payload"
)

// event names
const (
	EventWarning   = "slmweb_warning"
	EventHandshake = "slmweb_handshake"
)

// Wire is the peer connection a SlimWeb instance is bound to
type Wire interface {
	// ExtendedHandshake is our not yet sent extended handshake
	ExtendedHandshake() HandshakeFields
	// Choke tells the peer we stop serving it
	Choke()
}

// SlimWebOptions are the local capabilities we announce
type SlimWebOptions struct {
	ClientVer   string `mapstructure:"clientVer"`
	TorrentType string `mapstructure:"torrentType"`
	Payload     string `mapstructure:"payload"`
}

// DecodeSlimWebOptions decodes options from a loosely typed map, unknown keys are ignored
func DecodeSlimWebOptions(raw map[string]interface{}) (opts SlimWebOptions, err error) {
	var dec *mapstructure.Decoder
	dec, err = mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err == nil {
		err = dec.Decode(raw)
	}
	if err != nil {
		err = errors.Wrap(err, "decode slimweb options")
	}
	return
}

// ConfigurationError is returned when a SlimWeb is created without a required option
type ConfigurationError struct {
	Option string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("must instantiate %s with a %s", WTSlimWeb, e.Option)
}

// PeerCapabilityError is emitted when the peer does not list wt_slimweb in its handshake
type PeerCapabilityError struct {
	PeerID string
}

func (e *PeerCapabilityError) Error() string {
	return fmt.Sprintf("peer does not support %s", WTSlimWeb)
}

// IncompleteAnnouncementError is emitted when the peer supports wt_slimweb but left out fields
type IncompleteAnnouncementError struct {
	PeerID  string
	Missing []string
}

func (e *IncompleteAnnouncementError) Error() string {
	return fmt.Sprintf("peer sent incomplete %s handshake, missing %s", WTSlimWeb, strings.Join(e.Missing, ", "))
}

// Announcement is what a peer told us about itself
type Announcement struct {
	ClientVer   string
	TorrentType string
	Payload     string
}

// Status is where a SlimWeb is in the peer handshake
type Status int

const (
	StatusUnannounced = Status(0)
	StatusWarned      = Status(1)
	StatusAnnounced   = Status(2)
)

func (s Status) String() string {
	switch s {
	case StatusUnannounced:
		return "unannounced"
	case StatusWarned:
		return "warned"
	case StatusAnnounced:
		return "announced"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type optionalString struct {
	val string
	set bool
}

func (o optionalString) get() (string, bool) {
	return o.val, o.set
}

// SlimWeb is one peer connection's wt_slimweb state
type SlimWeb struct {
	ClientVer   string
	TorrentType string
	Payload     string

	wire            Wire
	access          sync.Mutex
	peerClientVer   optionalString
	peerTorrentType optionalString
	peerPayload     optionalString
	peerID          *common.PeerID
	amForceChoking  bool
	status          Status
	lastWarning     error

	warningHandlers   []func(error)
	handshakeHandlers []func(Announcement)
}

// NewSlimWeb creates the wt_slimweb extension for a wire and adds our fields to its extended handshake
func NewSlimWeb(opts SlimWebOptions, w Wire) (*SlimWeb, error) {
	if opts.ClientVer == "" {
		return nil, &ConfigurationError{Option: "clientVer"}
	}
	if opts.TorrentType == "" {
		return nil, &ConfigurationError{Option: "torrentType"}
	}
	s := &SlimWeb{
		ClientVer:   opts.ClientVer,
		TorrentType: opts.TorrentType,
		Payload:     opts.Payload,
		wire:        w,
	}
	hs := w.ExtendedHandshake()
	fields := [][2]string{
		{SlimWebClientVer, s.ClientVer},
		{SlimWebTorrentType, s.TorrentType},
		{SlimWebPayload, s.Payload},
	}
	for _, f := range fields {
		if err := hs.SetField(f[0], f[1]); err != nil {
			return nil, errors.Wrapf(err, "add %s to extended handshake", f[0])
		}
	}
	log.Debugf("%s instantiated: %s=%q %s=%q %s=%q", WTSlimWeb, SlimWebClientVer, s.ClientVer, SlimWebTorrentType, s.TorrentType, SlimWebPayload, s.Payload)
	return s, nil
}

// NewSlimWebFactory binds options for creating one SlimWeb per wire
func NewSlimWebFactory(opts SlimWebOptions) func(Wire) (*SlimWeb, error) {
	return func(w Wire) (*SlimWeb, error) {
		return NewSlimWeb(opts, w)
	}
}

// Name is the extension name advertised in the handshake "m" dict
func (s *SlimWeb) Name() Extension {
	return WTSlimWeb
}

// OnWarning subscribes to slmweb_warning events
func (s *SlimWeb) OnWarning(f func(error)) {
	s.access.Lock()
	s.warningHandlers = append(s.warningHandlers, f)
	s.access.Unlock()
}

// OnAnnounce subscribes to slmweb_handshake events
func (s *SlimWeb) OnAnnounce(f func(Announcement)) {
	s.access.Lock()
	s.handshakeHandlers = append(s.handshakeHandlers, f)
	s.access.Unlock()
}

// OnHandshake records the peer id from the base protocol handshake
func (s *SlimWeb) OnHandshake(ih common.Infohash, id common.PeerID, reserved bittorrent.Reserved) {
	s.access.Lock()
	s.peerID = &id
	s.access.Unlock()
}

func (s *SlimWeb) peerName() string {
	if s.peerID == nil {
		return "<unknown>"
	}
	return s.peerID.String()
}

// OnExtendedHandshake reads the peer's slimweb fields out of its extended handshake.
// Fields present are stored even when others are missing.
func (s *SlimWeb) OnExtendedHandshake(msg Message) {
	s.access.Lock()
	peer := s.peerName()
	if !msg.IsSupported(WTSlimWeb.String()) {
		err := &PeerCapabilityError{PeerID: peer}
		s.warnLocked(err)
		return
	}

	var missing []string
	read := func(key string, into *optionalString) {
		val, has := msg.Field(key)
		if !has {
			missing = append(missing, key)
			return
		}
		*into = optionalString{val: strings.ToValidUTF8(string(val), "\uFFFD"), set: true}
	}
	read(SlimWebClientVer, &s.peerClientVer)
	read(SlimWebTorrentType, &s.peerTorrentType)
	read(SlimWebPayload, &s.peerPayload)

	if len(missing) > 0 {
		log.Debugf("peer %s sent incomplete %s handshake", peer, WTSlimWeb)
		s.warnLocked(&IncompleteAnnouncementError{PeerID: peer, Missing: missing})
		return
	}

	a := Announcement{
		ClientVer:   s.peerClientVer.val,
		TorrentType: s.peerTorrentType.val,
		Payload:     s.peerPayload.val,
	}
	s.status = StatusAnnounced
	s.lastWarning = nil
	handlers := append([]func(Announcement){}, s.handshakeHandlers...)
	s.access.Unlock()
	log.Debugf("%s from %s: %+v", EventHandshake, peer, a)
	for _, f := range handlers {
		f(a)
	}
}

// warnLocked moves to the warned state and emits err, releasing the lock before handlers run
func (s *SlimWeb) warnLocked(err error) {
	s.status = StatusWarned
	s.lastWarning = err
	handlers := append([]func(error){}, s.warningHandlers...)
	s.access.Unlock()
	log.Debugf("%s: %s", EventWarning, err)
	for _, f := range handlers {
		f(err)
	}
}

// ForceChoke chokes the peer regardless of the wire's own choking decisions
func (s *SlimWeb) ForceChoke() {
	s.access.Lock()
	s.amForceChoking = true
	s.access.Unlock()
	s.wire.Choke()
}

// Unchoke lifts the force choke. It sends nothing, the wire decides when the peer is unchoked.
func (s *SlimWeb) Unchoke() {
	s.access.Lock()
	s.amForceChoking = false
	s.access.Unlock()
}

// AmForceChoking returns true between ForceChoke and Unchoke
func (s *SlimWeb) AmForceChoking() bool {
	s.access.Lock()
	defer s.access.Unlock()
	return s.amForceChoking
}

// PeerClientVer gets the peer's announced client version
func (s *SlimWeb) PeerClientVer() (string, bool) {
	s.access.Lock()
	defer s.access.Unlock()
	return s.peerClientVer.get()
}

// PeerTorrentType gets the peer's announced torrent type
func (s *SlimWeb) PeerTorrentType() (string, bool) {
	s.access.Lock()
	defer s.access.Unlock()
	return s.peerTorrentType.get()
}

// PeerPayload gets the peer's announced payload
func (s *SlimWeb) PeerPayload() (string, bool) {
	s.access.Lock()
	defer s.access.Unlock()
	return s.peerPayload.get()
}

// PeerID gets the peer id from the base handshake
func (s *SlimWeb) PeerID() (id common.PeerID, has bool) {
	s.access.Lock()
	defer s.access.Unlock()
	if s.peerID != nil {
		id, has = *s.peerID, true
	}
	return
}

// Status gets where the peer handshake stands
func (s *SlimWeb) Status() Status {
	s.access.Lock()
	defer s.access.Unlock()
	return s.status
}

// LastWarning gets the error of the last warning, nil unless Status is StatusWarned
func (s *SlimWeb) LastWarning() error {
	s.access.Lock()
	defer s.access.Unlock()
	return s.lastWarning
}
