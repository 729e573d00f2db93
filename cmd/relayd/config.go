package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type relayConfig struct {
	bind        string
	port        int
	backend     string
	redisAddr   string
	redisDB     int
	redisPass   string
	redisPrefix string
	logLevel    string
	logFormat   string
}

func (c *relayConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid backend %q (must be memory or redis)", c.backend)
	}
	return nil
}

func newCmd(cfg *relayConfig) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DECRYPTO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "relayd",
		Short:         "Self-hostable sync relay for decrypto game rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: DECRYPTO_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: DECRYPTO_PORT)")
	fs.StringVar(&cfg.backend, "backend", "memory", "room store backend, memory or redis (env: DECRYPTO_BACKEND)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address (env: DECRYPTO_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: DECRYPTO_REDIS_DB)")
	fs.StringVar(&cfg.redisPass, "redis-password", "", "redis password (env: DECRYPTO_REDIS_PASSWORD)")
	fs.StringVar(&cfg.redisPrefix, "redis-prefix", "decrypto", "redis key prefix (env: DECRYPTO_REDIS_PREFIX)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error (env: DECRYPTO_LOG_LEVEL)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json (env: DECRYPTO_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("relayd v{{.Version}}\n")

	return cmd
}
