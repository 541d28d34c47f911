package cmds

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-go-golems/bookwright/pkg/replay"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a scripted assistant backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptFile, _ := cmd.Flags().GetString("script")
			addr, _ := cmd.Flags().GetString("addr")
			path, _ := cmd.Flags().GetString("path")
			token, _ := cmd.Flags().GetString("token")

			script, err := replay.LoadScript(scriptFile)
			if err != nil {
				return err
			}

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrapf(err, "could not listen on %s", addr)
			}
			return serveReplay(cmd.Context(), lis, path, replay.NewServer(script, replay.WithToken(token)))
		},
	}
	cmd.Flags().String("script", "", "YAML script describing the turns to play")
	cmd.Flags().String("addr", "localhost:8000", "Listen address")
	cmd.Flags().String("path", "/api/llm/book", "Websocket endpoint path")
	cmd.Flags().String("token", "", "Require this access token (empty accepts any)")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func serveReplay(ctx context.Context, lis net.Listener, path string, backend *replay.Server) error {
	mux := http.NewServeMux()
	mux.Handle(path, backend)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Str("path", path).Msg("Serving scripted assistant")
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		// hijacked websocket connections are not tracked by Shutdown
		backend.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
