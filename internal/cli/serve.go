package cli

import (
	"cog-cli/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr     string
		lightbox bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor actions over HTTP for remote editors (--remote)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := app.localBackend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			srv, err := server.New(server.Config{
				Addr:    addr,
				Actions: l,
				Blobs:   l,
				Policy:  policyFor(app.config().Editor, lightbox),
				Log:     app.logger(),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.logger().Info("serving", zap.String("addr", srv.Addr()), zap.String("dir", app.Dir))
			if err := srv.ListenAndServe(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("COG_ADDR", "127.0.0.1:8080"), "Listen address")
	cmd.Flags().BoolVar(&lightbox, "lightbox", false, "Resolve editor routes with lightbox navigation")
	return cmd
}
