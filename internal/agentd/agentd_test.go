package agentd_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/mscrnt/spdtool/internal/agentcert"
	"github.com/mscrnt/spdtool/internal/agentd"
	"github.com/mscrnt/spdtool/internal/firmware"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/wire"
)

func findAvailablePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

func issueTestCertificates(t *testing.T) (caFile, serverCert, serverKey, clientCert, clientKey string) {
	t.Helper()
	issuer, err := agentcert.NewIssuer("agentd test CA")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	dir := t.TempDir()
	caFile = filepath.Join(dir, "ca.pem")
	if err := issuer.SaveCA(caFile, filepath.Join(dir, "ca-key.pem")); err != nil {
		t.Fatalf("SaveCA: %v", err)
	}

	serverLeaf, err := issuer.IssueServerLeaf("localhost", []string{"localhost", "127.0.0.1"})
	if err != nil {
		t.Fatalf("IssueServerLeaf: %v", err)
	}
	serverCert, serverKey = filepath.Join(dir, "server.pem"), filepath.Join(dir, "server-key.pem")
	if err := serverLeaf.Save(serverCert, serverKey); err != nil {
		t.Fatalf("save server leaf: %v", err)
	}

	clientLeaf, err := issuer.IssueClientLeaf("test-operator")
	if err != nil {
		t.Fatalf("IssueClientLeaf: %v", err)
	}
	clientCert, clientKey = filepath.Join(dir, "client.pem"), filepath.Join(dir, "client-key.pem")
	if err := clientLeaf.Save(clientCert, clientKey); err != nil {
		t.Fatalf("save client leaf: %v", err)
	}
	return caFile, serverCert, serverKey, clientCert, clientKey
}

func newTestSessionAndServer(t *testing.T, devices map[byte]*firmware.Device) (*agentd.Client, func()) {
	t.Helper()
	hostSide, fwSide := wire.NewPipeTransportPair()
	sim := firmware.NewSimulator(fwSide, devices, "20260115", nil)
	go func() { _ = sim.Run() }()

	sess, err := programmer.Open(hostSide, "test", nil)
	if err != nil {
		t.Fatalf("programmer.Open: %v", err)
	}

	caFile, serverCert, serverKey, clientCert, clientKey := issueTestCertificates(t)
	port := findAvailablePort(t)

	serverConfig := agentd.Config{Port: port, CertFile: serverCert, KeyFile: serverKey, CAFile: caFile}
	server, err := agentd.NewServer(serverConfig, sess, "test-programmer", nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go func() { _ = server.Start() }()
	time.Sleep(100 * time.Millisecond)

	clientConfig := agentd.ClientConfig{
		Host: "localhost", Port: port,
		CertFile: clientCert, KeyFile: clientKey, CAFile: caFile,
	}
	client, err := agentd.NewClient(clientConfig)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	cleanup := func() { sess.Close() }
	return client, cleanup
}

func TestAgentHealthCheck(t *testing.T) {
	client, cleanup := newTestSessionAndServer(t, nil)
	defer cleanup()
	if err := client.CheckHealth(); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
}

func TestAgentScan(t *testing.T) {
	devices := map[byte]*firmware.Device{
		0x50: firmware.NewDevice(512),
		0x52: firmware.NewDevice(512),
	}
	client, cleanup := newTestSessionAndServer(t, devices)
	defer cleanup()

	addrs, err := client.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("Scan returned %d addresses, want 2: %v", len(addrs), addrs)
	}
}

func TestAgentReadWriteRoundTrip(t *testing.T) {
	devices := map[byte]*firmware.Device{0x50: firmware.NewDevice(512)}
	client, cleanup := newTestSessionAndServer(t, devices)
	defer cleanup()

	if err := client.Write(0x50, 0, 0xAB); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := client.Read(0x50, 0, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 1 || data[0] != 0xAB {
		t.Fatalf("Read = %v, want [0xAB]", data)
	}
}

func TestAgentRswpQuery(t *testing.T) {
	devices := map[byte]*firmware.Device{0x50: firmware.NewDevice(512)}
	client, cleanup := newTestSessionAndServer(t, devices)
	defer cleanup()

	state, err := client.RSWP(0, "query")
	if err != nil {
		t.Fatalf("RSWP query: %v", err)
	}
	if state == "" {
		t.Fatal("RSWP query returned empty state")
	}
}
