package hub

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// Server accepts TCP clients that want the JSON-lines notification stream.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens until ctx is done or Close is called.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s.serve(ctx, ln)
}

const maxAcceptDelay = time.Second

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	log := s.Hub.log.WithField("transport", "tcp")
	log.WithField("addr", ln.Addr().String()).Info("listening")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// EMFILE and friends: back off like net/http does
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			log.WithError(err).WithField("retry_in", delay).Warn("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		go func(c net.Conn) {
			s.Hub.Join(c)
			log.WithField("remote", c.RemoteAddr().String()).Debug("client connected")
			defer func() {
				s.Hub.Remove(c)
				log.WithField("remote", c.RemoteAddr().String()).Debug("client disconnected")
			}()
			// the stream is one way; drain until the client hangs up
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// ListenAddr is the bound address once Run has started, or "".
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}
