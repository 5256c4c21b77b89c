package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roasbeef/troupe/actor"
	"github.com/roasbeef/troupe/transport/quicwire"
	"github.com/spf13/cobra"
)

var (
	// listenAddr is the UDP address the wire transport binds.
	listenAddr string

	// echoTag is the registry tag of the hosted echo actor.
	echoTag string
)

// serveCmd hosts the demo echo actor behind the QUIC wire transport.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host an echo actor reachable over the wire transport",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(
		&listenAddr, "listen", "127.0.0.1:0",
		"UDP address for the wire transport",
	)
	serveCmd.Flags().StringVar(
		&echoTag, "tag", "echo",
		"Registry tag for the echo actor",
	)
}

func runServe(cmd *cobra.Command, _ []string) error {
	closeLogs, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLogs()

	tlsCfg, err := quicwire.GenerateSelfSignedTLS(
		[]string{"localhost"}, 24*time.Hour,
	)
	if err != nil {
		return fmt.Errorf("generate TLS config: %w", err)
	}

	transport := quicwire.New(quicwire.Config{
		ListenAddr: listenAddr,
		TLSConfig:  tlsCfg,
	})

	system := actor.NewSystem(
		actor.WithTransport(transport),
		actor.WithCodec(newWireCodec()),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 10*time.Second,
		)
		defer cancel()

		if err := system.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr,
				"actor system shutdown incomplete: %v\n", err)
		}
	}()

	transport.SetInbound(system)

	addr, err := transport.Start()
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer func() { _ = transport.Stop() }()

	echo, err := system.Spawn(func() actor.Receiver {
		return &echoReceiver{}
	}, actor.WithTag(echoTag))
	if err != nil {
		return fmt.Errorf("spawn echo actor: %w", err)
	}

	fmt.Printf("serving actor %s (tag %q) on %s\n",
		echo.ID(), echoTag, addr)
	fmt.Printf("try: trouped ping --addr %s --actor %s\n",
		addr, echo.ID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down")

	return nil
}
