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

func TestFlagProbe_Run(t *testing.T) {
	addr := net.ParseIP("198.51.100.1")

	tests := []struct {
		name    string
		raw     fakeTransport
		want    model.PortStatus
		wantErr bool
	}{
		{"rst->closed", fakeTransport{tcpReply: RawReply{Kind: ReplyRst}}, model.StatusClosed, false},
		{"icmp-unreachable->filtered", fakeTransport{tcpReply: RawReply{Kind: ReplyICMPUnreachable}}, model.StatusFiltered, false},
		{"none->open", fakeTransport{tcpReply: RawReply{Kind: ReplyNone}}, model.StatusOpen, false},
		{"send-failure->error", fakeTransport{tcpErr: errors.New("operation not permitted")}, model.StatusError, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := FlagProbe{Transport: tc.raw, Flags: FlagFIN}
			out := p.Run(context.Background(), addr, 443, time.Second)
			assert.Equal(t, tc.want, out.Status)
			if tc.wantErr {
				assert.Error(t, out.Err)
			} else {
				assert.NoError(t, out.Err)
			}
		})
	}
}

func TestFlagProbe_NilTransportIsPrivilegeError(t *testing.T) {
	p := FlagProbe{Flags: FlagNone}
	out := p.Run(context.Background(), net.ParseIP("198.51.100.1"), 22, time.Second)
	assert.Equal(t, model.StatusError, out.Status)
	assert.Error(t, out.Err)
}
