package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_HTTPWithServerHeader(t *testing.T) {
	name, version, banner, confidence, extra, ok := classify([]byte("HTTP/1.1 200 OK\r\nServer: nginx/1.24\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "HTTP", name)
	assert.Empty(t, version)
	assert.Equal(t, "HTTP/1.1 200 OK", banner)
	assert.Equal(t, 0.9, confidence)
	assert.Equal(t, "nginx/1.24", extra["server"])
}

func TestClassify_SSHVersionIsFirstToken(t *testing.T) {
	name, version, banner, confidence, _, ok := classify([]byte("SSH-2.0-OpenSSH_8.9\r\n"))
	require.True(t, ok)
	assert.Equal(t, "SSH", name)
	assert.Equal(t, "SSH-2.0-OpenSSH_8.9", version)
	assert.Equal(t, "SSH-2.0-OpenSSH_8.9", banner)
	assert.Equal(t, 0.95, confidence)
}

func TestClassify_FTPGreeting(t *testing.T) {
	name, _, _, confidence, _, ok := classify([]byte("220 ProFTPD ready\r\n"))
	require.True(t, ok)
	assert.Equal(t, "FTP", name)
	assert.Equal(t, 0.9, confidence)
}

func TestClassify_SMTPGreeting(t *testing.T) {
	name, _, _, confidence, _, ok := classify([]byte("220 mail.example.com ESMTP Postfix\r\n"))
	require.True(t, ok)
	assert.Equal(t, "SMTP", name)
	assert.Equal(t, 0.9, confidence)
}

func TestClassify_TLSRecordHeader(t *testing.T) {
	name, _, _, confidence, _, ok := classify([]byte{0x16, 0x03, 0x03, 0x00, 0x40})
	require.True(t, ok)
	assert.Equal(t, "TLS", name)
	assert.Equal(t, 0.85, confidence)
}

func TestClassify_DNSTransactionPrefix(t *testing.T) {
	response := append([]byte{0x12, 0x34}, make([]byte, 10)...)
	name, _, _, confidence, _, ok := classify(response)
	require.True(t, ok)
	assert.Equal(t, "DNS", name)
	assert.Equal(t, 0.85, confidence)
}

func TestClassify_UnknownBanner(t *testing.T) {
	_, _, _, _, _, ok := classify([]byte("garbage response\r\n"))
	assert.False(t, ok)
}

func TestCheckCatalogVersion(t *testing.T) {
	assert.NoError(t, checkCatalogVersion("v1.0.0"))
	assert.NoError(t, checkCatalogVersion("v0.9.0"))
	assert.Error(t, checkCatalogVersion("v2.0.0"))
	assert.Error(t, checkCatalogVersion(""))
	assert.Error(t, checkCatalogVersion("not-a-version"))
}
