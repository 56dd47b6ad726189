package ipc

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "rmfd.sock")
	q := NewQueue()
	defer q.Close()
	s, err := NewServer(ListenConfig{SocketPath: sock}, q)
	require.NoError(t, err)
	defer s.Close()
	go s.Serve()

	go func() {
		req := <-q.Next()
		rsp := NewBuilder(TypeResponse, req.Header.Command, StatusOK).Serialize()
		req.Reply(rsp)
	}()

	// give the accept loop a moment to bind/listen.
	time.Sleep(10 * time.Millisecond)
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	reqFrame := NewBuilder(TypeRequest, 5, StatusOK).Serialize()
	_, err = conn.Write(reqFrame)
	require.NoError(t, err)

	rspFrame := make([]byte, maxFrame)
	n, err := conn.Read(rspFrame)
	require.NoError(t, err)
	hdr, err := ParseHeader(rspFrame[:n])
	require.NoError(t, err)
	assert.EqualValues(t, TypeResponse, hdr.Type)
	assert.EqualValues(t, 5, hdr.Command)
	assert.EqualValues(t, StatusOK, hdr.Status)
}

func TestServerDropsOversizeFrame(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "rmfd.sock")
	q := NewQueue()
	defer q.Close()
	s, err := NewServer(ListenConfig{SocketPath: sock}, q)
	require.NoError(t, err)
	defer s.Close()
	go s.Serve()
	time.Sleep(10 * time.Millisecond)

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	var lenBuf [4]byte
	lenBuf[0] = 0x01 // declared length = 0x00010001 (65537, > 4096)
	lenBuf[1] = 0x00
	lenBuf[2] = 0x01
	lenBuf[3] = 0x00
	conn.Write(lenBuf[:])

	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	assert.Equal(t, io.EOF, err)
}
