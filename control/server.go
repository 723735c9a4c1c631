// Package control implements a small telnet control surface for a running
// session. It exists so the operator can switch antennas from the shack
// computer (or a phone telnet app) without touching the logging machine:
// every mutation goes through the same session store the CLI uses, so the
// append lock keeps the two writers consistent.
//
// One goroutine per connected client; commands are line-oriented and the
// session store serializes all log mutations.
package control

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	ztelnet "github.com/ziutek/telnet"

	"antcmp/antenna"
	"antcmp/session"
)

// Server accepts telnet connections and applies session commands.
type Server struct {
	bindAddress string
	port        int
	store       *session.Store
	registry    *antenna.Registry
	listener    net.Listener
	shutdown    chan struct{}
	clientsMu   sync.Mutex
	clients     map[net.Conn]struct{}
}

// NewServer returns a control server bound to the given address.
func NewServer(bindAddress string, port int, store *session.Store, registry *antenna.Registry) *Server {
	return &Server{
		bindAddress: bindAddress,
		port:        port,
		store:       store,
		registry:    registry,
		shutdown:    make(chan struct{}),
		clients:     make(map[net.Conn]struct{}),
	}
}

// Start begins listening for control connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.bindAddress, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: failed to start server: %w", err)
	}
	s.listener = listener
	log.Printf("Control server listening on %s", addr)

	go s.acceptConnections()
	return nil
}

// Addr returns the bound listener address, useful when port 0 was requested.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("control: accept: %v", err)
				continue
			}
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(2 * time.Minute)
		}
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	address := conn.RemoteAddr().String()
	log.Printf("control: connection from %s", address)

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	// The telnet wrapper strips IAC negotiation so plain line reads work with
	// real telnet clients as well as netcat.
	tconn, err := ztelnet.NewConn(conn)
	if err != nil {
		log.Printf("control: failed to wrap connection from %s: %v", address, err)
		return
	}
	reader := bufio.NewReader(tconn)
	writer := bufio.NewWriter(tconn)

	send := func(format string, args ...any) {
		fmt.Fprintf(writer, format+"\r\n", args...)
		writer.Flush()
	}

	send("antcmp control - type HELP for commands")
	for {
		send(">")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, arg := splitCommand(line)
		switch cmd {
		case "QUIT", "BYE", "EXIT":
			send("73")
			return
		case "HELP", "?":
			for _, l := range helpLines {
				send("%s", l)
			}
		default:
			for _, l := range s.execute(cmd, arg, time.Now().UTC()) {
				send("%s", l)
			}
		}
	}
}

var helpLines = []string{
	"STATUS            show session state",
	"USE <antenna>     switch the active antenna",
	"PAUSE             pause the session",
	"RESUME            resume a paused session",
	"NOTE <text>       record an observation",
	"ANTENNAS          list defined antennas",
	"QUIT              disconnect",
}

func splitCommand(line string) (cmd, arg string) {
	parts := strings.SplitN(line, " ", 2)
	cmd = strings.ToUpper(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// execute applies one command against the session store and returns the
// response lines. Split from the connection handling so it can be tested
// without a socket.
func (s *Server) execute(cmd, arg string, now time.Time) []string {
	switch cmd {
	case "STATUS":
		st, err := s.store.Status(now)
		if err != nil {
			return []string{"error: " + err.Error()}
		}
		return statusLines(st)
	case "USE":
		if arg == "" {
			return []string{"usage: USE <antenna>"}
		}
		label := strings.ToLower(arg)
		desc := ""
		if s.registry != nil {
			if def, ok, err := s.registry.Get(label); err == nil && ok {
				desc = def.Description
			}
		}
		if _, err := s.store.Use(label, "", desc, now); err != nil {
			return []string{"error: " + err.Error()}
		}
		return []string{fmt.Sprintf("now using %s", label)}
	case "PAUSE":
		if _, err := s.store.Pause(now); err != nil {
			return []string{"error: " + err.Error()}
		}
		return []string{"session paused"}
	case "RESUME":
		if _, err := s.store.Resume(now); err != nil {
			return []string{"error: " + err.Error()}
		}
		return []string{"session resumed"}
	case "NOTE":
		if arg == "" {
			return []string{"usage: NOTE <text>"}
		}
		if _, err := s.store.Note(arg, now); err != nil {
			return []string{"error: " + err.Error()}
		}
		return []string{"noted"}
	case "ANTENNAS":
		if s.registry == nil {
			return []string{"no antenna registry configured"}
		}
		labels, err := s.registry.Labels()
		if err != nil {
			return []string{"error: " + err.Error()}
		}
		if len(labels) == 0 {
			return []string{"no antennas defined"}
		}
		lines := make([]string, 0, len(labels))
		for _, label := range labels {
			def, _, _ := s.registry.Get(label)
			if def.Description != "" {
				lines = append(lines, fmt.Sprintf("%s - %s", label, def.Description))
			} else {
				lines = append(lines, label)
			}
		}
		return lines
	default:
		return []string{fmt.Sprintf("unknown command %q - type HELP", cmd)}
	}
}

func statusLines(st session.Status) []string {
	if !st.Active {
		return []string{"no active session"}
	}
	lines := []string{
		fmt.Sprintf("session %q active, started %s", st.Name, st.StartTime.Format("2006-01-02 15:04 UTC")),
		fmt.Sprintf("elapsed %s", st.Elapsed.Round(time.Second)),
	}
	if st.Paused {
		lines = append(lines, "state: PAUSED")
	}
	if st.CurrentAntenna != "" {
		lines = append(lines, fmt.Sprintf("antenna: %s (%s on this antenna)",
			st.CurrentAntenna, st.AntennaElapsed.Round(time.Second)))
	} else {
		lines = append(lines, "antenna: none selected")
	}
	if len(st.Notes) > 0 {
		lines = append(lines, fmt.Sprintf("notes: %d", len(st.Notes)))
	}
	return lines
}

// Stop shuts down the server and disconnects all clients.
func (s *Server) Stop() {
	close(s.shutdown)
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clientsMu.Unlock()
}
