package probe

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum_KnownVector(t *testing.T) {
	// RFC 1071 §3's example: 0x0001 0xf203 0xf4f5 0xf6f7 sums to a checksum
	// of 0x220d.
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	assert.Equal(t, uint16(0x220d), checksum(data))
}

func TestChecksum_OddLength(t *testing.T) {
	// Must not panic or index out of range on an odd-length buffer.
	assert.NotPanics(t, func() {
		checksum([]byte{0x01, 0x02, 0x03})
	})
}

func TestBuildTCPSegment_HeaderFields(t *testing.T) {
	src := net.ParseIP("10.0.0.1")
	dst := net.ParseIP("10.0.0.2")
	seg := buildTCPSegment(src, dst, 33333, 443, FlagSYN, 0)

	require := assert.New(t)
	require.Len(seg, 20)
	require.Equal(uint16(33333), binary.BigEndian.Uint16(seg[0:2]))
	require.Equal(uint16(443), binary.BigEndian.Uint16(seg[2:4]))
	require.Equal(byte(FlagSYN), seg[13])
	require.NotZero(binary.BigEndian.Uint16(seg[16:18]), "checksum must be computed, not left zero")
}

func TestClassifyTCPReply(t *testing.T) {
	mkSegment := func(srcPort, dstPort uint16, flags byte) []byte {
		seg := make([]byte, 20)
		binary.BigEndian.PutUint16(seg[0:2], srcPort)
		binary.BigEndian.PutUint16(seg[2:4], dstPort)
		seg[13] = flags
		return seg
	}

	synAck := mkSegment(443, 33333, 0x12)
	kind, ok := classifyTCPReply(synAck, 33333, 443)
	assert.True(t, ok)
	assert.Equal(t, ReplySynAck, kind)

	rst := mkSegment(443, 33333, 0x04)
	kind, ok = classifyTCPReply(rst, 33333, 443)
	assert.True(t, ok)
	assert.Equal(t, ReplyRst, kind)

	mismatched := mkSegment(9999, 33333, 0x12)
	_, ok = classifyTCPReply(mismatched, 33333, 443)
	assert.False(t, ok, "reply for a different flow must not match")

	tooShort := []byte{0x00, 0x01}
	_, ok = classifyTCPReply(tooShort, 33333, 443)
	assert.False(t, ok)
}

func TestAddrIP(t *testing.T) {
	ip := net.ParseIP("192.0.2.5")
	assert.True(t, ip.Equal(addrIP(&net.IPAddr{IP: ip})))
	assert.True(t, ip.Equal(addrIP(&net.UDPAddr{IP: ip})))
	assert.Nil(t, addrIP(&net.TCPAddr{IP: ip}))
}
