package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wikistore",
	Short: "wiki document store tool",
	Example: `wikistore db migrate
wikistore get -w xwiki Main.WebHome
wikistore put -w xwiki Main.WebHome -c <content> -t <title>
wikistore history -w xwiki Main.WebHome
wikistore backlinks -w xwiki Main.WebHome
wikistore delete -w xwiki Main.WebHome
wikistore lock sweep -w xwiki`,
}

var configPath string

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wikistore.toml", "config file")

	rootCmd.AddCommand(dbCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
