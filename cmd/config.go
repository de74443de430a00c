package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configShowSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := *cfg
		if !configShowSecrets {
			if c.Mixrank.Key != "" {
				c.Mixrank.Key = "<redacted>"
			}
			if c.Exa.Key != "" {
				c.Exa.Key = "<redacted>"
			}
			if c.Anthropic.Key != "" {
				c.Anthropic.Key = "<redacted>"
			}
		}

		out, err := yaml.Marshal(&c)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "include API keys in output")
	rootCmd.AddCommand(configCmd)
}
