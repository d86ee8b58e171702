package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	baseURL   string
	apiKey    string
	timeoutMS int
	cfgPath   string
)

var rootCmd = &cobra.Command{
	Use:   "aport",
	Short: "APort developer CLI for agent policy verification",
}

func Execute() error { return rootCmd.Execute() }

func init() {
	home, _ := os.UserHomeDir()
	defaultCfg := filepath.Join(home, ".aport", "config.yaml")

	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "APort API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key sent as bearer authorization")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout-ms", 0, "per-call timeout in milliseconds")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "config file path")

	rootCmd.AddCommand(cmdVerify(), cmdToken(), cmdPassport(), cmdJWKS(), cmdStatus(), cmdVersion())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Println("Use -h for help, for example: aport verify finance.payment.refund.v1 --agent ap_123 --context '{\"amount\":1000}'")
	}
}
