package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
)

func encodeCmd() *cobra.Command {
	var (
		format  string
		outPath string
		compare bool
	)

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Re-encode a message in another wire format",
		Long: `Encode reads an encoded message in any format and writes it back out
in the requested one. With --compare it prints the size of each
encoding instead.`,
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

			if compare {
				sizes, err := codec.Sizes(m)
				if err != nil {
					return err
				}
				fmt.Printf("json:   %d bytes\n", sizes.JSONBytes)
				fmt.Printf("binary: %d bytes (%.1f%% smaller)\n", sizes.BinaryBytes, sizes.SavingsPercent)
				return nil
			}

			return writeEncoded(m, format, outPath)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "binary", "Target wire format (json, binary, compact)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&compare, "compare", false, "Print encoded sizes instead of re-encoding")

	return cmd
}

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a message and print it as indented JSON",
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
			out, err := codec.EncodeIndent(m)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}
