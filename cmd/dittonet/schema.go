package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittonet/pkg/config"
	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [output-file]",
		Short: "Generate the JSON schema of the configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaJSON, err := generateSchema()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				_, err := cmd.OutOrStdout().Write(append(schemaJSON, '\n'))
				return err
			}

			if err := os.WriteFile(args[0], schemaJSON, 0644); err != nil {
				return fmt.Errorf("writing schema file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "JSON schema written to %s\n", args[0])
			return nil
		},
	}

	return cmd
}

func generateSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DittoNet Configuration"
	schema.Description = "Configuration schema for the DittoNet server"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return schemaJSON, nil
}
