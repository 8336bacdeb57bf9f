package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"stockwatch/pkg/models"
)

// LogSink writes every notification to the log so nothing is lost when no
// client is connected.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, n models.Notification) error {
	fields := logrus.Fields{"title": n.Title, "id": n.ID}
	if n.ProductID != "" {
		fields["product_id"] = n.ProductID
		fields["chain"] = n.Chain
	}
	s.log.WithFields(fields).Info(n.Body)
	return nil
}
