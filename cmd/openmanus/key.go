package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the LLM API key stored in the OS keyring",
}

var keySetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Store the API key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var secret string
		if len(args) == 1 {
			secret = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read api key: %w", err)
			}
			secret = line
		}
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errors.New("api key is empty")
		}
		if err := config.StoreAPIKey(secret); err != nil {
			return fmt.Errorf("store api key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key stored in keyring")
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.DeleteAPIKey(); err != nil {
			return fmt.Errorf("delete api key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key removed from keyring")
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyDeleteCmd)
}
