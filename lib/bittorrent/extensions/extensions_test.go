package extensions

import (
	"testing"

	"github.com/majestrate/slimweb/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWireMessageHandshake(t *testing.T) {
	body := "d1:md11:ut_metadatai1e10:wt_slimwebi3ee13:metadata_sizei1024e1:pi6881e17:slmweb_client_ver3:2.019:slmweb_torrent_type9:text/html1:v8:peer-1.0e"
	msg := common.NewWireMessage(common.Extended, []byte{0}, []byte(body))

	opts, err := FromWireMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), opts.ID)
	assert.Equal(t, "peer-1.0", opts.Version)
	assert.True(t, opts.IsSupported(WTSlimWeb.String()))
	assert.True(t, opts.IsSupported("ut_metadata"))
	assert.False(t, opts.IsSupported("ut_pex"))
	require.NotNil(t, opts.MetainfoSize)
	assert.Equal(t, uint32(1024), *opts.MetainfoSize)

	ver, has := opts.Field(SlimWebClientVer)
	assert.True(t, has)
	assert.Equal(t, "2.0", string(ver))
	_, has = opts.Field(SlimWebPayload)
	assert.False(t, has)
	// integer "p" is not a string field
	_, has = opts.Field("p")
	assert.False(t, has)

	name, ok := opts.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, WTSlimWeb.String(), name)
}

func TestFromWireMessageEmptyCapabilities(t *testing.T) {
	msg := common.NewWireMessage(common.Extended, []byte{0}, []byte("d1:mdee"))
	opts, err := FromWireMessage(msg)
	require.NoError(t, err)
	assert.False(t, opts.IsSupported(WTSlimWeb.String()))
	assert.Empty(t, opts.Fields)
}

func TestFromWireMessageCapabilityIDRange(t *testing.T) {
	body := "d1:md11:ut_metadatai4294967295e10:wt_slimwebi4294967296eee"
	opts, err := FromWireMessage(common.NewWireMessage(common.Extended, []byte{0}, []byte(body)))
	require.NoError(t, err)
	assert.Equal(t, uint32(4294967295), opts.Extensions["ut_metadata"])
	// an id past uint32 must not wrap around to 0
	_, has := opts.Extensions[WTSlimWeb.String()]
	assert.False(t, has)
}

func TestToWireMessageOnlyHandshake(t *testing.T) {
	m := New()
	m.ID = 3
	_, err := m.ToWireMessage()
	assert.Equal(t, ErrInvalidMessageID, err)
}

func TestFromWireMessageErrors(t *testing.T) {
	_, err := FromWireMessage(common.NewChoke())
	assert.Equal(t, ErrInvalidMessageID, err)

	_, err = FromWireMessage(common.NewWireMessage(common.Extended, []byte{0}))
	assert.Equal(t, ErrInvalidSize, err)

	_, err = FromWireMessage(common.NewWireMessage(common.Extended, []byte{0}, []byte("i5e")))
	assert.Error(t, err)
}

func TestHandshakeToWireMessage(t *testing.T) {
	h := NewOutgoingHandshake()
	require.NoError(t, h.SetSupported(WTSlimWeb))
	require.NoError(t, h.SetField(SlimWebClientVer, "1.0"))
	require.NoError(t, h.SetField(SlimWebTorrentType, "video/mp4"))
	require.NoError(t, h.SetField(SlimWebPayload, "abc"))

	m := h.Seal()
	m.Version = "slimweb-test"
	msg, err := m.ToWireMessage()
	require.NoError(t, err)
	assert.Equal(t, common.Extended, msg.MessageID())
	assert.Equal(t,
		"\x00d1:md10:wt_slimwebi1ee17:slmweb_client_ver3:1.014:slmweb_payload3:abc19:slmweb_torrent_type9:video/mp41:v12:slimweb-teste",
		string(msg.Payload()))

	back, err := FromWireMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, m.Fields, back.Fields)
	assert.Equal(t, m.Extensions, back.Extensions)
}

func TestOutgoingHandshakeMergeOnce(t *testing.T) {
	h := NewOutgoingHandshake()
	require.NoError(t, h.SetField("x_a", "1"))
	assert.NoError(t, h.SetField("x_a", "1"))
	assert.Equal(t, ErrFieldConflict, h.SetField("x_a", "2"))
	assert.Equal(t, ErrReservedField, h.SetField("m", "oops"))
	assert.Equal(t, ErrReservedField, h.SetField("v", "oops"))

	assert.False(t, h.Sealed())
	h.Seal()
	assert.True(t, h.Sealed())
	assert.Equal(t, ErrHandshakeSealed, h.SetField("x_b", "1"))
	assert.Equal(t, ErrHandshakeSealed, h.SetSupported(WTSlimWeb))
	val, has := h.Field("x_a")
	assert.True(t, has)
	assert.Equal(t, "1", val)
}

func TestSetSupportedAssignsIDs(t *testing.T) {
	m := Message{}
	m.SetSupported("ut_metadata")
	m.SetSupported(WTSlimWeb)
	m.SetSupported(WTSlimWeb)
	assert.Equal(t, map[string]uint32{"ut_metadata": 1, "wt_slimweb": 2}, m.Extensions)
}

func TestCopyIsDeep(t *testing.T) {
	m := New()
	m.Fields["k"] = []byte("v")
	m.SetSupported(WTSlimWeb)
	c := m.Copy()
	c.Fields["k"][0] = 'x'
	c.Extensions["other"] = 9
	assert.Equal(t, "v", string(m.Fields["k"]))
	assert.False(t, m.IsSupported("other"))
}
