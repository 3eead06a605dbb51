package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
	"github.com/pulseprotocolorg-cyber/pulse-go/transport"
)

func sendCmd() *cobra.Command {
	var (
		serverURL string
		key       string
		format    string
		timeout   time.Duration
		retries   int
		insecure  bool
	)

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send an encoded message to a PULSE server",
		Long: `Send posts the message in file to the server and prints the decoded
reply as indented JSON. With --key the message is signed (or
re-signed) before sending.`,
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

			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			opts := []transport.ClientOption{
				transport.WithFormat(f),
				transport.WithTimeout(timeout),
				transport.WithRetries(retries),
			}
			if key != "" {
				signer, err := security.NewManager(key)
				if err != nil {
					return err
				}
				opts = append(opts, transport.WithSigner(signer))
			}
			if insecure {
				tlsCfg, err := transport.ClientTLSConfig("", true)
				if err != nil {
					return err
				}
				opts = append(opts, transport.WithTLSClientConfig(tlsCfg))
			}

			client := transport.NewClient(serverURL, opts...)
			resp, err := client.Send(cmd.Context(), m)
			if err != nil {
				return err
			}

			out, err := codec.EncodeIndent(resp)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "to", "http://127.0.0.1:8470", "Server base URL")
	cmd.Flags().StringVar(&key, "key", "", "HMAC key to sign with before sending")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Wire format (json, binary)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	cmd.Flags().IntVar(&retries, "retries", 3, "Retry attempts on transient failures")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")

	return cmd
}
