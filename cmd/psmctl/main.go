// Command psmctl inspects and edits prompt structure files from the
// terminal, either in a local save directory or through a running server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PromptStruct/internal/adapter/psmclient"
	"github.com/Strob0t/PromptStruct/internal/adapter/yamlfs"
	"github.com/Strob0t/PromptStruct/internal/config"
	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

var version = "0.1.0"

// options holds the persistent flags shared by all commands.
type options struct {
	server     string
	dir        string
	configFile string
	logLevel   string

	cfg *config.Config
}

// store opens the prompt file store the flags select: the /psm API of a
// server when --server is set, the local save directory otherwise.
func (o *options) store() filestore.Store {
	if o.server != "" {
		return psmclient.NewClient(strings.TrimRight(o.server, "/"), o.cfg.Store.Timeout)
	}
	return yamlfs.New(o.configFile, o.dir)
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "psmctl",
		Short: "Inspect and edit prompt structure files",
		Long: `psmctl works on prompt structure files.

Without --server it reads and writes the local save directory; with
--server it goes through the /psm API of a running psm server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			o.cfg = cfg
			if !cmd.Flags().Changed("dir") {
				o.dir = cfg.Store.DataDir
			}
			if !cmd.Flags().Changed("config") {
				o.configFile = cfg.Store.ConfigFile
			}
			if o.server == "" && cfg.Store.Backend == config.BackendRemote {
				o.server = cfg.Store.RemoteURL
			}

			logCfg := cfg.Logging
			logCfg.Level = o.logLevel
			logCfg.Async = false
			log, _ := logger.New(logCfg)
			slog.SetDefault(log)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.server, "server", "", "base URL of a psm server, e.g. http://localhost:7861")
	pf.StringVar(&o.dir, "dir", "", "save directory used until the config file names one")
	pf.StringVar(&o.configFile, "config", "", "manager config file")
	pf.StringVar(&o.logLevel, "log", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newFilesCmd(o),
		newShowCmd(o),
		newCompileCmd(o),
		newImportCmd(o),
		newRemoveCmd(o),
		newConfigCmd(o),
		newListenCmd(o),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
