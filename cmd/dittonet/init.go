package main

import (
	"fmt"

	"github.com/marmos91/dittonet/pkg/config"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Long: `Write a commented configuration file with every default spelled out.

Without --path the file goes to $XDG_CONFIG_HOME/dittonet/config.yaml
(or ~/.config/dittonet/config.yaml).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Write the file here instead of the default location")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
