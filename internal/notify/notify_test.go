package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/models"
)

type recordingSink struct {
	name string
	err  error
	got  []models.Notification
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, n models.Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestDispatcherPermission(t *testing.T) {
	ctx := context.Background()

	d := NewDispatcher()
	assert.Equal(t, models.PermissionDefault, d.RequestPermission(ctx), "no sinks: nothing to grant")

	d.AddSink(&recordingSink{name: "a"})
	assert.Equal(t, models.PermissionGranted, d.RequestPermission(ctx))

	require.NoError(t, d.SetPermission(models.PermissionDenied))
	assert.Equal(t, models.PermissionDenied, d.RequestPermission(ctx))

	var verr *models.ConfigValidationError
	assert.True(t, errors.As(d.SetPermission("maybe"), &verr))
}

func TestDispatcherShowDenied(t *testing.T) {
	sink := &recordingSink{name: "a"}
	d := NewDispatcher(sink)
	require.NoError(t, d.SetPermission(models.PermissionDenied))

	err := d.Show(context.Background(), models.Notification{Title: "x"})
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	assert.Empty(t, sink.got)
}

func TestDispatcherShowFansOut(t *testing.T) {
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("offline")}
	last := &recordingSink{name: "last"}
	d := NewDispatcher(good, bad, last)

	err := d.Show(context.Background(), models.Notification{Title: "Product Availability Update"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sink: offline")
	assert.Len(t, good.got, 1)
	assert.Len(t, last.got, 1, "a failing sink does not stop the others")
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewLogSink(logrus.NewEntry(logger))

	require.NoError(t, s.Deliver(context.Background(), models.Notification{
		ID: "n1", Title: "Product Availability Update", Body: "Milk is now available in Auto Mercado.",
		ProductID: "3001", Chain: models.Chain1,
	}))
	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, "Milk is now available in Auto Mercado.", e.Message)
	assert.Equal(t, "3001", e.Data["product_id"])
}

func TestUDPServerRegisterAndDeliver(t *testing.T) {
	reg := NewRegistry()
	srv := NewServer("127.0.0.1:0", reg, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	require.Eventually(t, func() bool { return srv.LocalAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer client.Close()

	reg1, _ := json.Marshal(RegisterMessage{Type: RegisterMessageType, ClientID: "cli"})
	_, err = client.WriteTo(reg1, srv.LocalAddr())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Deliver(ctx, models.Notification{Title: "Test Notification", Body: "This is a test notification."}))

	buf := make([]byte, 2048)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := client.ReadFrom(buf)
	require.NoError(t, err)

	var msg NotificationMessage
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, NotificationMessageType, msg.Type)
	assert.Equal(t, "This is a test notification.", msg.Notification.Body)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestUDPDeliverNotRunning(t *testing.T) {
	reg := NewRegistry()
	srv := NewServer("127.0.0.1:0", reg, quietLogger())
	assert.NoError(t, srv.Deliver(context.Background(), models.Notification{}), "no clients")

	reg.Register("c1", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})
	assert.Error(t, srv.Deliver(context.Background(), models.Notification{}))
}

func TestParseRegisterMessage(t *testing.T) {
	_, err := parseRegisterMessage([]byte(`{"type":"register"}`))
	assert.Error(t, err)
	_, err = parseRegisterMessage([]byte(`not json`))
	assert.Error(t, err)
	msg, err := parseRegisterMessage([]byte(`{"type":"register","client_id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", msg.ClientID)
}

func TestConnectNATSUnreachable(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1", "stockwatch.availability.changed", quietLogger())
	assert.Error(t, err)
}
