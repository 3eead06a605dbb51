package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

func keygenCmd() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "keygen [agent-id]",
		Short: "Generate a signing key",
		Long: `Keygen generates a 256-bit HMAC key. With an agent id and --key-file
the key is stored in the YAML key store; otherwise it is printed to
stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && keyFile == "" {
				return fmt.Errorf("agent id %q requires --key-file", args[0])
			}
			if len(args) == 0 {
				key, err := security.GenerateKey()
				if err != nil {
					return err
				}
				fmt.Println(key)
				return nil
			}

			store, err := keystore.NewFile(keyFile, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			key, err := keystore.GenerateAndStore(store, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("stored key for %s in %s\n", args[0], keyFile)
			fmt.Println(key)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key-file", "", "YAML key store to write the key into")
	return cmd
}
