package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"impostor/internal/config"
	"impostor/internal/logging"
)

const releaseVersion = "0.1.0"

func main() {
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("IMPOSTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var configPath string

	cmd := &cobra.Command{
		Use:     "impostor",
		Short:   "Real-time server for the impostor word party game.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigWithFlags(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

			srv, err := SetupServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("server stopped with error")
				return err
			}
			return nil
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configPath, "config", "c", "", "path to server.yaml (env: IMPOSTOR_CONFIG)")
	fs.String("host", "", "address to bind to (env: IMPOSTOR_HOST)")
	fs.StringP("port", "p", "", "port to listen on (env: IMPOSTOR_PORT)")
	fs.String("log-level", "", "trace, debug, info, warn or error (env: IMPOSTOR_LOG_LEVEL)")
	fs.String("log-format", "", "text or json (env: IMPOSTOR_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) && v.GetString(f.Name) != "" {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("impostor v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
