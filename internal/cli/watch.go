package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCommand(root *RootOptions) *cobra.Command {
	var (
		tcpAddr   string
		pretty    bool
		reconnect bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream notifications from the daemon",
		Long: `Stream notifications from the daemon over WebSocket (default) or the
plain TCP line feed (--tcp).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			run := func() error {
				if tcpAddr != "" {
					return streamTCP(ctx, tcpAddr, out, pretty)
				}
				token, _ := readToken(root.TokenPath)
				wsURL, err := websocketURL(root.API, "/ws", token)
				if err != nil {
					return err
				}
				return streamWebSocket(ctx, wsURL, out, pretty)
			}
			for {
				err := run()
				if !reconnect || ctx.Err() != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "disconnected: %v\n", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}
	cmd.Flags().StringVar(&tcpAddr, "tcp", "", "TCP feed address, e.g. 127.0.0.1:7070")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "reconnect after a disconnect")
	return cmd
}

func printLine(w io.Writer, line []byte, pretty bool) {
	if !pretty {
		fmt.Fprintln(w, string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		// not JSON? print raw
		fmt.Fprintln(w, string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(w, string(b))
}

func streamTCP(ctx context.Context, addr string, w io.Writer, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printLine(w, sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return io.EOF
}

func streamWebSocket(ctx context.Context, wsURL string, w io.Writer, pretty bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printLine(w, msg, pretty)
	}
}
