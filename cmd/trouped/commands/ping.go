package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/transport/quicwire"
	"github.com/spf13/cobra"
)

var (
	// pingAddr is the remote node address.
	pingAddr string

	// pingActorID is the identity of the remote echo actor.
	pingActorID string

	// pingText is the text to shout.
	pingText string

	// pingTimeout bounds the ask.
	pingTimeout time.Duration

	// pingInsecure skips TLS verification for self-signed demo servers.
	pingInsecure bool
)

// pingCmd asks a remote echo actor from a second process.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ask a remote echo actor and print the reply",
	RunE:  runPing,
}

func init() {
	pingCmd.Flags().StringVar(
		&pingAddr, "addr", "",
		"Remote node address (host:port)",
	)
	pingCmd.Flags().StringVar(
		&pingActorID, "actor", "",
		"Identity of the remote actor",
	)
	pingCmd.Flags().StringVar(
		&pingText, "text", "hello from troupe",
		"Text for the echo actor to shout",
	)
	pingCmd.Flags().DurationVar(
		&pingTimeout, "timeout", 5*time.Second,
		"Reply timeout",
	)
	pingCmd.Flags().BoolVar(
		&pingInsecure, "insecure", true,
		"Skip TLS verification (self-signed demo servers)",
	)

	_ = pingCmd.MarkFlagRequired("addr")
	_ = pingCmd.MarkFlagRequired("actor")
}

func runPing(cmd *cobra.Command, _ []string) error {
	closeLogs, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLogs()

	id, err := actor.ParseID(pingActorID)
	if err != nil {
		return fmt.Errorf("parse actor id: %w", err)
	}

	transport := quicwire.New(quicwire.Config{
		ClientTLSConfig: &tls.Config{
			InsecureSkipVerify: pingInsecure,
			MinVersion:         tls.VersionTLS13,
		},
	})
	defer func() { _ = transport.Stop() }()

	system := actor.NewSystem(
		actor.WithTransport(transport),
		actor.WithCodec(newWireCodec()),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()

		_ = system.Shutdown(shutdownCtx)
	}()

	remote := system.RemoteRef(id, pingAddr)

	ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
	defer cancel()

	reply, err := remote.Ask(ctx, &EchoRequest{Text: pingText})
	if err != nil {
		return fmt.Errorf("ask %s at %s: %w", id, pingAddr, err)
	}

	echoed, ok := reply.(*EchoReply)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", reply)
	}

	fmt.Println(echoed.Text)

	return nil
}
