package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"stockwatch/pkg/models"
)

// NATSSink publishes notifications to a subject on an existing NATS server.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// ConnectNATS dials url and returns a sink publishing to subject.
func ConnectNATS(url, subject string, log *logrus.Entry) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("stockwatchd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{conn: nc, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Deliver(_ context.Context, n models.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(s.subject)
	msg.Data = b
	msg.Header.Set("Nats-Msg-Id", n.ID)
	if n.Chain != "" {
		msg.Header.Set("Stockwatch-Chain", string(n.Chain))
	}
	return s.conn.PublishMsg(msg)
}

func (s *NATSSink) Close() {
	if s.conn != nil {
		_ = s.conn.Drain()
	}
}
