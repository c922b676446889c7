package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swaudit",
	Short: "audit installed software inventories against a CVE corpus",
	Long: `
swaudit matches installed-software inventories against a MongoDB CVE corpus,
caches the per-name match outcome and reports the vulnerabilities of the
matched products.

Configuration is read from environment variables (a .env file is honoured)
layered over swaudit.yml.
`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
