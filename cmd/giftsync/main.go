package main

import (
	"fmt"
	"os"

	"giftcart/internal/config"
	"giftcart/internal/infra/logger"

	"github.com/spf13/cobra"
)

var (
	envFiles []string
	cfg      config.ReconcilerConfig
)

var rootCmd = &cobra.Command{
	Use:   "giftsync",
	Short: "Keep free gift lines in a storefront cart in sync with the active promotion",
	Long: `giftsync watches a storefront cart and adds or removes free gift lines
according to the promotion rules and the discount code the shopper entered.

Subcommands:
  serve      - Accept page events over HTTP and reconcile on each trigger
  run        - Run one reconciliation pass against the cart and exit
  parse-code - Show which rule a discount code resolves to
  status     - Show the stored eligibility
  clear      - Forget the stored eligibility`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadReconciler(envFiles...)
		if err != nil {
			return err
		}
		cfg = c
		logger.Setup(cfg.GoEnv, cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	rootCmd.AddCommand(serveCmd, runCmd, parseCodeCmd, statusCmd, clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
