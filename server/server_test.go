package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/rdbkv/config"
	"github.com/raniellyferreira/rdbkv/storage"
)

// Simple RESP client for testing
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTestClient(addr string) (*testClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &testClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

func (c *testClient) Close() error {
	return c.conn.Close()
}

func encodeCommand(cmd string, args ...string) string {
	parts := append([]string{cmd}, args...)
	resp := "*" + strconv.Itoa(len(parts)) + "\r\n"
	for _, part := range parts {
		resp += "$" + strconv.Itoa(len(part)) + "\r\n" + part + "\r\n"
	}
	return resp
}

func (c *testClient) sendCommand(cmd string, args ...string) (string, error) {
	if _, err := c.conn.Write([]byte(encodeCommand(cmd, args...))); err != nil {
		return "", err
	}
	return c.readResponse()
}

func (c *testClient) readResponse() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	line = strings.TrimSuffix(line, "\r\n")
	if len(line) == 0 {
		return "", nil
	}

	switch line[0] {
	case '+': // Simple string
		return line[1:], nil
	case '-': // Error
		return line, nil
	case '_': // Null
		return "(null)", nil
	case '$': // Bulk string
		size, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", err
		}
		if size == -1 {
			return "(nil)", nil
		}
		data := make([]byte, size+2) // +2 for CRLF
		if _, err := io.ReadFull(c.reader, data); err != nil {
			return "", err
		}
		return string(data[:size]), nil
	case '*': // Array
		size, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", err
		}

		items := make([]string, 0, size)
		for i := 0; i < size; i++ {
			item, err := c.readResponse()
			if err != nil {
				return "", err
			}
			items = append(items, item)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		return line, nil
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingMetrics struct {
	mu       sync.Mutex
	commands map[string]int
	errors   map[string]int
	active   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{commands: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) CommandProcessed(name string) {
	m.mu.Lock()
	m.commands[name]++
	m.mu.Unlock()
}

func (m *countingMetrics) CommandError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) ConnectionOpened() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}

func (m *countingMetrics) ConnectionClosed() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

func (m *countingMetrics) snapshot() (map[string]int, map[string]int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmds := make(map[string]int, len(m.commands))
	for k, v := range m.commands {
		cmds[k] = v
	}
	errs := make(map[string]int, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	return cmds, errs, m.active
}

func startServer(t *testing.T, store storage.Storage, opts ...Option) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", store, opts...)
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, server *Server) *testClient {
	t.Helper()
	client, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServer_BasicCommands(t *testing.T) {
	server := startServer(t, storage.NewMemory())
	client := dial(t, server)

	tests := []struct {
		cmd  string
		args []string
		want string
	}{
		{"PING", nil, "PONG"},
		{"ping", nil, "PONG"},
		{"ECHO", []string{"hello world"}, "hello world"},
		{"GET", []string{"testkey"}, "(nil)"},
		{"SET", []string{"testkey", "testvalue"}, "OK"},
		{"GET", []string{"testkey"}, "testvalue"},
		{"SET", []string{"testkey", "other"}, "OK"},
		{"get", []string{"testkey"}, "other"},
		{"SET", []string{"empty", ""}, "OK"},
		{"GET", []string{"empty"}, ""},
		{"KEYS", nil, "[empty, testkey]"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand(tt.cmd, tt.args...)
		if err != nil {
			t.Fatalf("%s %v: %v", tt.cmd, tt.args, err)
		}
		if resp != tt.want {
			t.Errorf("%s %v = %q, want %q", tt.cmd, tt.args, resp, tt.want)
		}
	}
}

func TestServer_WireBytes(t *testing.T) {
	server := startServer(t, storage.NewMemory())
	client := dial(t, server)

	exchanges := []struct {
		request string
		reply   string
	}{
		{"*1\r\n$4\r\nPING\r\n", "+PONG\r\n"},
		{"*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", "+OK\r\n"},
		{"*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n", "$3\r\nbar\r\n"},
		{"*2\r\n$3\r\nGET\r\n$7\r\nmissing\r\n", "$-1\r\n"},
		{"*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n", "+hi\r\n"},
		{"*1\r\n+KEYS\r\n", "*1\r\n$3\r\nfoo\r\n"},
	}

	for _, ex := range exchanges {
		if _, err := client.conn.Write([]byte(ex.request)); err != nil {
			t.Fatal(err)
		}
		got := make([]byte, len(ex.reply))
		if _, err := io.ReadFull(client.reader, got); err != nil {
			t.Fatalf("reading reply to %q: %v", ex.request, err)
		}
		if string(got) != ex.reply {
			t.Errorf("reply to %q = %q, want %q", ex.request, got, ex.reply)
		}
	}
}

func TestServer_Pipelined(t *testing.T) {
	server := startServer(t, storage.NewMemory())
	client := dial(t, server)

	batch := encodeCommand("SET", "a", "1") + encodeCommand("SET", "b", "2") + encodeCommand("GET", "a") + encodeCommand("KEYS")
	if _, err := client.conn.Write([]byte(batch)); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"OK", "OK", "1", "[a, b]"} {
		resp, err := client.readResponse()
		if err != nil {
			t.Fatal(err)
		}
		if resp != want {
			t.Errorf("got %q, want %q", resp, want)
		}
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	store := storage.NewMemory()
	server := startServer(t, store)
	client := dial(t, server)

	tests := []struct {
		cmd  string
		args []string
		want string
	}{
		{"UNKNOWNCMD", nil, "-ERR unrecognized command"},
		{"PING", []string{"extra"}, "-ERR wrong number of arguments for 'ping' command"},
		{"ECHO", nil, "-ERR wrong number of arguments for 'echo' command"},
		{"GET", nil, "-ERR wrong number of arguments for 'get' command"},
		{"SET", []string{"k"}, "-ERR wrong number of arguments for 'set' command"},
		{"SET", []string{"k", "v", "PX"}, "-ERR wrong number of arguments for 'set' command"},
		{"SET", []string{"k", "v", "EX", "10"}, "-ERR syntax error: unsupported SET option 'EX'"},
		{"SET", []string{"k", "v", "PX", "soon"}, "-ERR PX value is not an integer or out of range"},
		{"SET", []string{"k", "v", "PX", "-5"}, "-ERR PX value is not an integer or out of range"},
		{"CONFIG", []string{"SET", "dir", "/tmp"}, "-ERR unknown CONFIG subcommand 'SET'"},
		{"KEYS", []string{"*"}, "-ERR wrong number of arguments for 'keys' command"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand(tt.cmd, tt.args...)
		if err != nil {
			t.Fatalf("%s %v: %v", tt.cmd, tt.args, err)
		}
		if resp != tt.want {
			t.Errorf("%s %v = %q, want %q", tt.cmd, tt.args, resp, tt.want)
		}
	}

	// malformed SETs never touch the store
	if n := store.KeyCount(); n != 0 {
		t.Errorf("store has %d keys after rejected commands", n)
	}

	// the connection survives command errors
	resp, err := client.sendCommand("PING")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "PONG" {
		t.Errorf("expected PONG, got %s", resp)
	}
}

func TestServer_ProtocolErrorClosesConnection(t *testing.T) {
	server := startServer(t, storage.NewMemory())

	requests := []string{
		"+PING\r\n",
		"*1\r\n$4\r\nPINGXX\r\n",
		"*-1\r\n",
		"*1\r\n*1\r\n$4\r\nPING\r\n",
	}

	for _, req := range requests {
		client := dial(t, server)
		if _, err := client.conn.Write([]byte(req)); err != nil {
			t.Fatal(err)
		}

		resp, err := client.readResponse()
		if err != nil {
			t.Fatalf("%q: %v", req, err)
		}
		if !strings.HasPrefix(resp, "-ERR protocol error") {
			t.Errorf("%q: expected protocol error, got %q", req, resp)
		}

		_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := client.reader.ReadByte(); !errors.Is(err, io.EOF) {
			t.Errorf("%q: expected connection to be closed, got %v", req, err)
		}
	}
}

func TestServer_ConfigGet(t *testing.T) {
	registry := config.NewRegistry(
		config.Pair{Name: "dir", Value: "/tmp/redis-files"},
		config.Pair{Name: "dbfilename", Value: "dump.rdb"},
	)
	server := startServer(t, storage.NewMemory(), WithRegistry(registry))
	client := dial(t, server)

	tests := []struct {
		name string
		want string
	}{
		{"dir", "[dir, /tmp/redis-files]"},
		{"DBFILENAME", "[dbfilename, dump.rdb]"},
		{"maxmemory", "(null)"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand("CONFIG", "GET", tt.name)
		if err != nil {
			t.Fatal(err)
		}
		if resp != tt.want {
			t.Errorf("CONFIG GET %s = %q, want %q", tt.name, resp, tt.want)
		}
	}

	resp, err := client.sendCommand("config", "get", "dir")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "[dir, /tmp/redis-files]" {
		t.Errorf("lower case CONFIG GET = %q", resp)
	}
}

func TestServer_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := storage.NewMemory(storage.WithClock(clock))
	server := startServer(t, store)
	client := dial(t, server)

	steps := []struct {
		cmd  string
		args []string
		want string
	}{
		{"SET", []string{"short", "v", "PX", "100"}, "OK"},
		{"SET", []string{"long", "v", "px", "1000"}, "OK"},
		{"SET", []string{"forever", "v"}, "OK"},
		{"GET", []string{"short"}, "v"},
	}
	for _, s := range steps {
		resp, err := client.sendCommand(s.cmd, s.args...)
		if err != nil {
			t.Fatal(err)
		}
		if resp != s.want {
			t.Errorf("%s %v = %q, want %q", s.cmd, s.args, resp, s.want)
		}
	}

	clock.Advance(100 * time.Millisecond)

	resp, _ := client.sendCommand("GET", "short")
	if resp != "(nil)" {
		t.Errorf("expired key returned %q", resp)
	}
	resp, _ = client.sendCommand("KEYS")
	if resp != "[forever, long]" {
		t.Errorf("KEYS = %q, want [forever, long]", resp)
	}

	// overwriting without PX clears the deadline
	resp, _ = client.sendCommand("SET", "long", "again")
	if resp != "OK" {
		t.Fatalf("SET = %q", resp)
	}
	clock.Advance(time.Hour)
	resp, _ = client.sendCommand("GET", "long")
	if resp != "again" {
		t.Errorf("GET long = %q, want again", resp)
	}
}

func TestServer_WorkerPoolBackpressure(t *testing.T) {
	server := startServer(t, storage.NewMemory(), WithWorkers(2))

	first := dial(t, server)
	second := dial(t, server)
	for _, c := range []*testClient{first, second} {
		if resp, err := c.sendCommand("PING"); err != nil || resp != "PONG" {
			t.Fatalf("PING = %q, %v", resp, err)
		}
	}

	third := dial(t, server)
	if _, err := third.conn.Write([]byte(encodeCommand("PING"))); err != nil {
		t.Fatal(err)
	}

	_ = third.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err := third.readResponse()
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("third connection was served while the pool was full: %v", err)
	}

	_ = first.Close()

	_ = third.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := third.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp != "PONG" {
		t.Errorf("expected PONG, got %s", resp)
	}
}

func TestServer_Metrics(t *testing.T) {
	m := newCountingMetrics()
	server := startServer(t, storage.NewMemory(), WithMetrics(m))
	client := dial(t, server)

	_, _ = client.sendCommand("PING")
	_, _ = client.sendCommand("SET", "key", "value")
	_, _ = client.sendCommand("GET", "key")
	_, _ = client.sendCommand("GET", "key")
	_, _ = client.sendCommand("NOPE")

	cmds, errs, active := m.snapshot()
	if cmds["ping"] != 1 || cmds["set"] != 1 || cmds["get"] != 2 {
		t.Errorf("unexpected command counts %v", cmds)
	}
	if errs[kindCommand] != 1 {
		t.Errorf("unexpected error counts %v", errs)
	}
	if active != 1 {
		t.Errorf("expected 1 active connection, got %d", active)
	}

	_ = client.Close()
	waitFor(t, "connection close", func() bool {
		_, _, active := m.snapshot()
		return active == 0
	})
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", storage.NewMemory())
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	if err := server.Start(); !errors.Is(err, ErrServerStarted) {
		t.Errorf("second Start = %v, want ErrServerStarted", err)
	}

	client, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()
	if resp, err := client.sendCommand("PING"); err != nil || resp != "PONG" {
		t.Fatalf("PING = %q, %v", resp, err)
	}

	done := make(chan error, 1)
	go func() { done <- server.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return with a connected client")
	}

	_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.reader.ReadByte(); err == nil {
		t.Error("connection still open after Stop")
	}
	if n := server.ClientCount(); n != 0 {
		t.Errorf("%d clients tracked after Stop", n)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("second Stop = %v", err)
	}
	if err := server.Start(); !errors.Is(err, ErrServerStopped) {
		t.Errorf("Start after Stop = %v, want ErrServerStopped", err)
	}
}

func TestServer_StopWithQueuedConnection(t *testing.T) {
	server := NewServer("127.0.0.1:0", storage.NewMemory(), WithWorkers(1))
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}

	busy, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = busy.Close() }()
	if _, err := busy.sendCommand("PING"); err != nil {
		t.Fatal(err)
	}

	queued, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = queued.Close() }()
	waitFor(t, "queued connection", func() bool { return server.ClientCount() == 2 })

	done := make(chan error, 1)
	go func() { done <- server.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung with a connection waiting for a worker")
	}
}

func TestServer_IdleTimeout(t *testing.T) {
	server := startServer(t, storage.NewMemory(), WithIdleTimeout(50*time.Millisecond))
	client := dial(t, server)

	_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.reader.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected idle connection to be closed, got %v", err)
	}
}
