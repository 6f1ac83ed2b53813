package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clash-sh/clash/pkg/clasherr"
	"github.com/clash-sh/clash/pkg/clashio"
	"github.com/clash-sh/clash/pkg/clashlog"
	"github.com/clash-sh/clash/pkg/conflict"
)

// newCheckCmd implements the pre-write-hook predicate (§4.6). It exits
// 2 (not just a non-zero RunE error) when the queried file is
// conflicted, so the caller's exit-code contract is honored exactly:
// 0 clean, 2 conflict/active changes, 1 operational error.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Check a single file for conflicts across sibling working trees",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveCheckPath(cmd, args)
			if err != nil {
				return err
			}

			log := clashlog.New(cmd.ErrOrStderr())
			trees, _, err := openWorkingTrees(".", log)
			if err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("%w: resolve current directory: %v", clasherr.ErrIoFailure, err)
			}

			report, err := conflict.CheckFile(trees, cwd, path)
			if err != nil {
				return err
			}

			if err := clashio.JSON().EmitSingleFileReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if report.IsConflicted() {
				os.Exit(2)
			}
			return nil
		},
	}
}

// resolveCheckPath reads the queried path from the positional argument
// when given, otherwise from one line of standard input — the mode
// pre-write hooks use to feed one path per invocation (§6).
func resolveCheckPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return "", fmt.Errorf("no file path given and standard input was empty")
		}
		return line, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: read file path from standard input: %v", clasherr.ErrIoFailure, err)
	}
	return "", fmt.Errorf("no file path given and standard input was empty")
}
