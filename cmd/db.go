package cmd

import (
	"github.com/spf13/cobra"

	"github.com/emrgen/wikistore/internal/config"
	"github.com/emrgen/wikistore/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the storage backend",
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()
			if err := s.Migrate(); err != nil {
				panic(err)
			}
		},
	}

	return command
}

func openStore() store.Store {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	s, err := store.NewFromConfig(cfg, store.NewMappingRegistry())
	if err != nil {
		panic(err)
	}
	return s
}

func loadConfig() config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	return cfg
}
