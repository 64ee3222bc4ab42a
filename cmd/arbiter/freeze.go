package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/cli"
)

var freezeFlags struct {
	format string
}

var freezeCmd = &cobra.Command{
	Use:   "freeze [TEXT...]",
	Short: "Compute freeze flags for a text payload",
	Long: `Compute the freeze flags for a text payload: rep_3p (adjacent 3-byte
windows repeat), stall (empty or low byte diversity) and ai_tell
(boilerplate such as "as an AI"). Arguments are joined with spaces; without
arguments the text is read from stdin.

Examples:
  arbiter freeze "as an AI language model"
  echo "hahahahahaha" | arbiter freeze --format json`,
	RunE: runFreeze,
}

func init() {
	rootCmd.AddCommand(freezeCmd)

	freezeCmd.Flags().StringVar(&freezeFlags.format, "format", "text", "output format: text, json, csv")
}

type freezeResult arbiter.FreezeFlags

func (r freezeResult) Header() []string { return []string{"rep_3p", "stall", "ai_tell"} }

func (r freezeResult) Rows() [][]string {
	return [][]string{{
		strconv.FormatBool(r.Rep3p),
		strconv.FormatBool(r.Stall),
		strconv.FormatBool(r.AITell),
	}}
}

func runFreeze(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(freezeFlags.format)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return cli.NewCommandError("freeze", err)
		}
		text = string(data)
	}

	flags := arbiter.DetectFreeze(text)
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), freezeResult(flags))
}
