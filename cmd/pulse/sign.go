package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

func signCmd() *cobra.Command {
	var (
		key     string
		keyFile string
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Sign an encoded message",
		Long: `Sign computes the HMAC-SHA256 signature over the message's canonical
form and writes the signed message back out. The key comes from --key
or is looked up by sender in the key store at --key-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			m, err := codec.Decode(data)
			if err != nil {
				return err
			}

			k, err := resolveKey(key, keyFile, m.Envelope.Sender)
			if err != nil {
				return err
			}
			mgr, err := security.NewManager(k)
			if err != nil {
				return err
			}
			sig, err := mgr.Sign(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "signature: %s\n", sig)

			if outPath == "" {
				outPath = args[0]
			}
			return writeEncoded(m, format, outPath)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "HMAC key")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "YAML key store to resolve the sender's key from")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Wire format for the signed output")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: overwrite input)")

	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		key     string
		keyFile string
	)

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a message's signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			m, err := codec.Decode(data)
			if err != nil {
				return err
			}
			if m.Envelope.Signature == "" {
				return fmt.Errorf("message is unsigned")
			}

			k, err := resolveKey(key, keyFile, m.Envelope.Sender)
			if err != nil {
				return err
			}
			mgr, err := security.NewManager(k)
			if err != nil {
				return err
			}
			if !mgr.Verify(m) {
				return fmt.Errorf("signature verification failed")
			}
			fmt.Printf("OK   %s (sender %s)\n", args[0], m.Envelope.Sender)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "HMAC key")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "YAML key store to resolve the sender's key from")

	return cmd
}

// resolveKey prefers an explicit key, then falls back to a key-store lookup
// for the given agent.
func resolveKey(key, keyFile, agentID string) (string, error) {
	if key != "" {
		return key, nil
	}
	if keyFile == "" {
		return "", fmt.Errorf("either --key or --key-file is required")
	}
	store, err := keystore.NewFile(keyFile, nil)
	if err != nil {
		return "", err
	}
	defer store.Close()
	k, ok := store.Get(agentID)
	if !ok {
		return "", fmt.Errorf("no key for agent %s in %s", agentID, keyFile)
	}
	return k, nil
}
