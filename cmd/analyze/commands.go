package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file.pdf>",
	Short: "Write the financial summary of a PDF as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()
		if _, err := a.load(ctx, args[0]); err != nil {
			return err
		}

		opts := analysis.SummaryOptions{}
		opts.SummaryWords, _ = cmd.Flags().GetInt("summary-words")
		if cmd.Flags().Changed("temperature") {
			t, _ := cmd.Flags().GetFloat64("temperature")
			opts.Temperature = &t
		}
		res, err := a.svc.Summarize(ctx, a.sessionID, opts)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = reports.SummaryFilename(time.Now())
		}
		if out == "-" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary)
		} else {
			if err := util.WriteTextAtomic(out, res.Summary); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s (%s/%s, %d pages, %d caractères)\n", out, res.Provider, res.Model, res.Pages, res.Chars)
		}

		if js, _ := cmd.Flags().GetString("json"); js != "" {
			if err := util.WriteJSONAtomic(js, res); err != nil {
				return err
			}
		}
		if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
			_, body, err := a.svc.SummaryXLSX(a.sessionID)
			if err != nil {
				return err
			}
			if err := util.WriteBytesAtomic(xlsx, body); err != nil {
				return err
			}
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <file.pdf> <question…>",
	Short: "Answer one question about a PDF",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.load(cmd.Context(), args[0]); err != nil {
			return err
		}
		turn, err := a.svc.Ask(cmd.Context(), a.sessionID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), turn.Content)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Print the paged text that would be sent to the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _ := cmd.Flags().GetString("engine")
		maxChars, _ := cmd.Flags().GetInt("max-chars")
		if engine == "" {
			engine = v.GetString("extract.engine")
		}
		if maxChars == 0 {
			maxChars = v.GetInt("extract.max_chars")
		}
		ex, err := extract.New(engine)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		res, err := extract.Extract(cmd.Context(), ex, data, config.ClampMaxChars(maxChars))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		fmt.Fprintf(cmd.ErrOrStderr(), "pages=%d markers=%d chars=%d truncated=%t extractor=%s\n",
			res.Pages, extract.CountPageMarkers(res.Text), res.Chars, res.Truncated, res.Extractor)
		return nil
	},
}

func init() {
	f := summarizeCmd.Flags()
	f.Int("summary-words", 0, "target summary length in words (150-500)")
	f.Float64("temperature", 0.3, "sampling temperature (0-1)")
	f.String("sector", "", "report type: general or bank")
	f.StringP("out", "o", "", "markdown output path, - for stdout (default resume_financier_<timestamp>.md)")
	f.String("xlsx", "", "also write the key-figures workbook to this path")
	f.String("json", "", "also write the summary result as json to this path")
}
