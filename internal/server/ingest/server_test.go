package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dofstream/internal/log"
	"github.com/Alia5/dofstream/internal/server/ingest"
	th "github.com/Alia5/dofstream/internal/testing"
	"github.com/Alia5/dofstream/sample"
)

func frame(t *testing.T, st sample.State) []byte {
	t.Helper()
	b, err := st.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestServer_SplitsFramesAcrossWrites(t *testing.T) {
	col := th.NewCollector(8)
	srv, addr := th.StartIngest(t, ingest.ServerConfig{}, col)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	var stream []byte
	for i := range 3 {
		stream = append(stream, frame(t, sample.State{Axes: sample.Axes{X: float64(i) / 10}, Buttons: sample.ButtonsFromInts(i % 2)})...)
	}
	// write in awkward chunks so frames straddle reads
	for off := 0; off < len(stream); off += 7 {
		end := min(off+7, len(stream))
		_, err := c.Write(stream[off:end])
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	got := col.Wait(t, 3, 2*time.Second)
	for i, st := range got {
		assert.InDelta(t, float64(i)/10, st.X, 1e-9)
		assert.Equal(t, i%2 == 1, st.Buttons[0])
	}
	assert.Equal(t, uint64(3), srv.Stats().Frames)
}

func TestServer_MalformedFrameDoesNotDropConnection(t *testing.T) {
	col := th.NewCollector(4)
	srv, addr := th.StartIngest(t, ingest.ServerConfig{}, col)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("{broken\n"))
	require.NoError(t, err)
	_, err = c.Write(frame(t, sample.State{Axes: sample.Axes{Yaw: 0.5}}))
	require.NoError(t, err)

	got := col.Wait(t, 1, 2*time.Second)
	assert.Equal(t, 0.5, got[0].Yaw)
	assert.Equal(t, uint64(1), srv.Stats().DecodeErrors)
}

func TestServer_OversizedFrameIsDropped(t *testing.T) {
	col := th.NewCollector(4)
	srv, addr := th.StartIngest(t, ingest.ServerConfig{}, col)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write(append(bytes.Repeat([]byte("9"), sample.MaxFrameSize+100), '\n'))
	require.NoError(t, err)
	_, err = c.Write(frame(t, sample.State{Axes: sample.Axes{Roll: -0.5}}))
	require.NoError(t, err)

	got := col.Wait(t, 1, 2*time.Second)
	assert.Equal(t, -0.5, got[0].Roll)
	assert.Equal(t, uint64(1), srv.Stats().DecodeErrors)
}

func TestServer_SequentialConnections(t *testing.T) {
	col := th.NewCollector(4)
	srv, addr := th.StartIngest(t, ingest.ServerConfig{}, col)

	for i := range 2 {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		_, err = c.Write(frame(t, sample.State{Axes: sample.Axes{Z: float64(i + 1)}}))
		require.NoError(t, err)
		got := col.Wait(t, 1, 2*time.Second)
		assert.Equal(t, float64(i+1), got[0].Z)
		require.NoError(t, c.Close())
	}

	require.Eventually(t, func() bool { return srv.Stats().Connections == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Once(t *testing.T) {
	col := th.NewCollector(2)
	srv := ingest.New(ingest.ServerConfig{Addr: "127.0.0.1:0", Once: true}, col, slog.Default(), nil)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	<-srv.Ready()
	defer srv.Close()

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	_, err = c.Write(frame(t, sample.State{}))
	require.NoError(t, err)
	col.Wait(t, 1, 2*time.Second)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after its single connection")
	}
}

func TestServer_CloseDropsActiveConnection(t *testing.T) {
	var rx bytes.Buffer
	srv := ingest.New(ingest.ServerConfig{Addr: "127.0.0.1:0"}, th.NewCollector(1), slog.Default(), log.NewRaw(&rx))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	<-srv.Ready()

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return srv.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Close())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := ingest.New(ingest.ServerConfig{Addr: ln.Addr().String()}, th.NewCollector(1), slog.Default(), nil)
	assert.Error(t, srv.ListenAndServe())
}

// failingListener fails the first n accepts before delegating.
type failingListener struct {
	net.Listener
	n int
}

func (l *failingListener) Accept() (net.Conn, error) {
	if l.n > 0 {
		l.n--
		return nil, errors.New("accept: too many open files")
	}
	return l.Listener.Accept()
}

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	col := th.NewCollector(1)
	srv := ingest.New(ingest.ServerConfig{}, col, slog.Default(), nil)
	start := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(&failingListener{Listener: ln, n: 4}) }()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(frame(t, sample.State{Axes: sample.Axes{Z: 1}}))
	require.NoError(t, err)

	got := col.Wait(t, 1, 5*time.Second)
	assert.Equal(t, 1.0, got[0].Z)
	// 5ms + 10ms + 20ms + 40ms
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
	assert.Equal(t, uint64(4), srv.Stats().AcceptErrors)

	require.NoError(t, srv.Close())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestMultiSink(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	sink := ingest.MultiSink{
		ingest.SinkFunc(func(context.Context, sample.State) error { calls = append(calls, "a"); return boom }),
		ingest.SinkFunc(func(context.Context, sample.State) error { calls = append(calls, "b"); return nil }),
		ingest.LogSink{Logger: slog.Default(), Level: slog.LevelDebug},
	}
	err := sink.Handle(context.Background(), sample.State{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func ExampleSinkFunc() {
	sink := ingest.SinkFunc(func(_ context.Context, st sample.State) error {
		fmt.Println(st.X, st.Buttons.Any())
		return nil
	})
	_ = sink.Handle(context.Background(), sample.State{Axes: sample.Axes{X: 0.5}, Buttons: sample.ButtonsFromInts(1)})
	// Output: 0.5 true
}
