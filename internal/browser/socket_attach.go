package browser

import (
	"fmt"
	"io"
	"net"
)

// socketProxy forwards Chrome DevTools Protocol connections from a
// loopback TCP listener to a Unix domain socket, so an Electron host
// exposing its embedded browser's CDP endpoint over a Unix socket can
// still be reached through playwright-go's Chromium.Connect, which only
// speaks ws://. Each accepted TCP connection gets its own Unix-socket
// connection. newSocketProxy starts the proxy; Close stops accepting new
// connections (in-flight ones are left to finish on their own).
type socketProxy struct {
	listener   net.Listener
	socketPath string
}

// newSocketProxy binds an ephemeral loopback TCP port and starts
// forwarding every accepted connection to socketPath.
func newSocketProxy(socketPath string) (*socketProxy, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("browser: listen for unix-socket proxy: %w", err)
	}
	p := &socketProxy{listener: listener, socketPath: socketPath}
	go p.acceptLoop()
	return p, nil
}

// Addr is the loopback TCP address Chromium.Connect should dial instead
// of the Unix socket directly.
func (p *socketProxy) Addr() string {
	return p.listener.Addr().String()
}

func (p *socketProxy) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go p.relay(conn)
	}
}

func (p *socketProxy) relay(tcpConn net.Conn) {
	defer tcpConn.Close()

	unixConn, err := net.Dial("unix", p.socketPath)
	if err != nil {
		return
	}
	defer unixConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(unixConn, tcpConn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(tcpConn, unixConn)
		done <- struct{}{}
	}()
	<-done
}

func (p *socketProxy) Close() error {
	return p.listener.Close()
}
