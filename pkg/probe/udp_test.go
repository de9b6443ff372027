package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scanforge/scanforge/pkg/model"
)

func TestUDPProbe_Run(t *testing.T) {
	addr := net.ParseIP("198.51.100.1")

	tests := []struct {
		name    string
		raw     fakeTransport
		want    model.PortStatus
		wantErr bool
	}{
		{"data->open", fakeTransport{udpReply: RawReply{Kind: ReplyUDPData}}, model.StatusOpen, false},
		{"port-unreachable->closed", fakeTransport{udpReply: RawReply{Kind: ReplyICMPUnreachable, ICMPCode: icmpCodePortUnreachable}}, model.StatusClosed, false},
		{"other-unreachable->filtered", fakeTransport{udpReply: RawReply{Kind: ReplyICMPUnreachable, ICMPCode: 1}}, model.StatusFiltered, false},
		{"none->filtered", fakeTransport{udpReply: RawReply{Kind: ReplyNone}}, model.StatusFiltered, false},
		{"send-failure->error", fakeTransport{udpErr: errors.New("network is unreachable")}, model.StatusError, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := UDPProbe{Transport: tc.raw}
			out := p.Run(context.Background(), addr, 53, time.Second)
			assert.Equal(t, tc.want, out.Status)
			if tc.wantErr {
				assert.Error(t, out.Err)
			} else {
				assert.NoError(t, out.Err)
			}
		})
	}
}

func TestUDPProbe_NilTransportIsPrivilegeError(t *testing.T) {
	p := UDPProbe{}
	out := p.Run(context.Background(), net.ParseIP("198.51.100.1"), 53, time.Second)
	assert.Equal(t, model.StatusError, out.Status)
	assert.Error(t, out.Err)
}

func TestPayloadFor_KnownAndUnknownPorts(t *testing.T) {
	assert.NotEmpty(t, PayloadFor(53))
	assert.NotEmpty(t, PayloadFor(161))
	assert.NotEmpty(t, PayloadFor(123))
	assert.Nil(t, PayloadFor(9999))
}
