package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"stockwatch/pkg/models"
)

// UDP clients announce themselves with a register datagram and then receive
// one datagram per notification.
const (
	RegisterMessageType     = "register"
	UnregisterMessageType   = "unregister"
	NotificationMessageType = "notification"
)

type RegisterMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type NotificationMessage struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
}

type Client struct {
	ClientID string
	Addr     *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(clientID string, addr *net.UDPAddr) {
	if clientID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[clientID] = Client{ClientID: clientID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Server is the UDP notification sink.
type Server struct {
	addr     string
	registry *Registry
	log      *logrus.Entry

	mu   sync.RWMutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry, log *logrus.Entry) *Server {
	return &Server{addr: addr, registry: registry, log: log}
}

// Run reads register datagrams until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	s.log.WithField("addr", conn.LocalAddr().String()).Info("UDP notify server listening")

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.log.WithError(err).WithField("remote", addr.String()).Warn("invalid UDP message")
			continue
		}
		switch msg.Type {
		case RegisterMessageType:
			s.registry.Register(msg.ClientID, addr)
			s.log.WithFields(logrus.Fields{"client_id": msg.ClientID, "remote": addr.String()}).Info("registered UDP client")
		case UnregisterMessageType:
			s.registry.Remove(msg.ClientID)
		}
	}
}

// LocalAddr is the bound address while Run is active.
func (s *Server) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) Name() string { return "udp" }

// Deliver sends n to every registered client. A client that fails twice is
// dropped from the registry. With no clients there is nothing to do, running
// or not.
func (s *Server) Deliver(_ context.Context, n models.Notification) error {
	if s.registry.Len() == 0 {
		return nil
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errors.New("UDP notify server not running")
	}

	payload, err := json.Marshal(NotificationMessage{Type: NotificationMessageType, Notification: n})
	if err != nil {
		return err
	}
	for _, client := range s.registry.Snapshot() {
		s.sendWithRetry(conn, client, payload)
	}
	return nil
}

func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if err := sendOnce(conn, client, payload); err == nil {
		return
	}
	if err := sendOnce(conn, client, payload); err != nil {
		s.log.WithError(err).WithField("client_id", client.ClientID).Warn("failed to notify UDP client")
		s.registry.Remove(client.ClientID)
	}
}

func sendOnce(conn *net.UDPConn, client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ClientID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
