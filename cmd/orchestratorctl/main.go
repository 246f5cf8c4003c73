// Command orchestratorctl is the operator-facing CLI for the hub
// orchestrator: seeding client tokens and reading hub/client state through
// the dashboard-facing RPC surface, grounded on the shape of the teacher's
// own cobra root command (internal/cli/cmd.rootCmd).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestratorctl",
	Short: "Operator CLI for the hub orchestrator",
	Long:  "orchestratorctl manages client tokens and inspects per-user hub state.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "orchestrator server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newHubsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
