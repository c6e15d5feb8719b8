package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sensord/internal/reading"
)

// Error codes reported through the OutputFormatter.
const (
	errCodeInvalidPayload = "INVALID_PAYLOAD"
	errCodeNotFound       = "NOT_FOUND"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Addr    string
	Timeout time.Duration
}

// SendResult describes a delivered payload.
type SendResult struct {
	Addr    string `json:"addr"`
	Payload string `json:"payload"`
}

func (r SendResult) String() string {
	return fmt.Sprintf("sent %s to %s", r.Payload, r.Addr)
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <payload>",
		Short: "Push one reading to a running collector",
		Long: `Push one reading to a running collector, the way a sensor node does.

The payload is checked locally before it is sent; the collector never
replies, so success means the payload was written to the connection.

Example:
  sensord send 23.5,60.0,150,3,1
  sensord send --addr 192.168.1.20:5000 21.0,55.2,80,2,0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPayload(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "localhost:5000", "collector address")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "dial and write timeout")

	return cmd
}

func sendPayload(opts *SendOptions, payload string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	r, err := reading.ParsePayload([]byte(payload))
	if err != nil {
		_ = formatter.Error(errCodeInvalidPayload, err.Error(), payload)
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}
	if err := r.Validate(); err != nil {
		_ = formatter.Error(errCodeInvalidPayload, err.Error(), payload)
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}
	wire := reading.FormatPayload(r)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	formatter.VerboseLog("dialing %s", opts.Addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to connect", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return WrapExitError(ExitFailure, "failed to set write deadline", err)
		}
	}
	if _, err := conn.Write([]byte(wire)); err != nil {
		return WrapExitError(ExitFailure, "failed to send payload", err)
	}

	return formatter.Success(SendResult{Addr: opts.Addr, Payload: wire})
}
