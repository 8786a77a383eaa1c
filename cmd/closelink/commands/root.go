package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"closelink/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	radioName  string
	appCtx     *app.App
)

func Execute() error {
	cfg := app.ConfigFromEnv()

	root := &cobra.Command{
		Use:   "closelink",
		Short: "Private proximity discovery and encrypted chat",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = cfg.Home
			}
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".closelink")
			}
			cfg.Home = home
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if radioName != "" {
				cfg.Radio = radioName
			}

			var err error
			appCtx, err = app.New(cfg)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.closelink)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local profile")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. ws://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&radioName, "radio", "", "radio backend: sim or mdns")

	root.AddCommand(profileCmd(), discoverCmd(), chatCmd())
	return root.Execute()
}
