package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	pulse "github.com/pulseprotocolorg-cyber/pulse-go"
	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

func createCmd() *cobra.Command {
	var (
		msgType  string
		sender   string
		receiver string
		target   string
		params   []string
		key      string
		format   string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "create <action>",
		Short: "Create a message with the given action concept",
		Long: `Create builds a protocol message around an action concept from the
vocabulary, validates it, optionally signs it, and writes the encoded
result to stdout or a file.

Parameters are given as key=value pairs; values that parse as numbers
or booleans are typed accordingly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []pulse.Option{
				pulse.WithSender(sender),
				pulse.WithType(message.Type(strings.ToUpper(msgType))),
			}
			if receiver != "" {
				opts = append(opts, pulse.WithReceiver(receiver))
			}
			if target != "" {
				opts = append(opts, pulse.WithTarget(target))
			}
			if len(params) > 0 {
				parsed, err := parseParams(params)
				if err != nil {
					return err
				}
				opts = append(opts, pulse.WithParameters(parsed))
			}

			m, err := pulse.New(args[0], opts...)
			if err != nil {
				return err
			}

			if key != "" {
				mgr, err := security.NewManager(key)
				if err != nil {
					return err
				}
				if _, err := mgr.Sign(m); err != nil {
					return fmt.Errorf("sign message: %w", err)
				}
			}

			return writeEncoded(m, format, outPath)
		},
	}

	cmd.Flags().StringVarP(&msgType, "type", "t", "REQUEST", "Message type (REQUEST, RESPONSE, ERROR, STATUS)")
	cmd.Flags().StringVarP(&sender, "sender", "s", "default-agent", "Sender agent identifier")
	cmd.Flags().StringVarP(&receiver, "receiver", "r", "", "Receiver agent identifier")
	cmd.Flags().StringVar(&target, "target", "", "Target concept code")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&key, "key", "", "HMAC key to sign with")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Wire format (json, binary, compact)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}

// parseParams turns key=value pairs into typed parameters. Numbers and
// booleans keep their natural types; everything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[key] = typedValue(value)
	}
	return params, nil
}

func typedValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// writeEncoded encodes m in the named format and writes it to path or
// stdout. JSON written to stdout is indented for readability.
func writeEncoded(m *message.Message, format, path string) error {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return err
	}

	toStdout := path == "" || path == "-"

	var data []byte
	if f == codec.FormatJSON && toStdout {
		data, err = codec.EncodeIndent(m)
		if err == nil {
			data = append(data, '\n')
		}
	} else {
		data, err = codec.Encode(m, f)
	}
	if err != nil {
		return err
	}

	if toStdout {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
