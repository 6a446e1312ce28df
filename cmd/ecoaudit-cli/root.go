package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree. Each invocation gets its own viper
// instance so flags, ECOAUDIT_* variables and defaults resolve per run.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ECOAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "ecoaudit-cli",
		Short:        "Gate CI builds on the network footprint of a web page.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("api-url", "http://127.0.0.1:3000", "EcoAudit server base URL")
	root.PersistentFlags().String("api-key", "", "API key sent as X-API-Key")
	_ = v.BindPFlag("api-url", root.PersistentFlags().Lookup("api-url"))
	_ = v.BindPFlag("api-key", root.PersistentFlags().Lookup("api-key"))

	root.AddCommand(newAuditCmd(v))
	return root
}
