package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/api"
	"github.com/kalambet/bizpulse/internal/config"
	"github.com/kalambet/bizpulse/internal/page"
)

// errAnalysisFailed makes the process exit non-zero after a failed page has
// been printed.
var errAnalysisFailed = errors.New("analysis failed")

func kindArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if _, ok := analysis.Lookup(args[0]); !ok {
		return fmt.Errorf("unknown kind %q (valid: %s)", args[0], strings.Join(analysis.Names(), ", "))
	}
	return nil
}

// --- kinds ---

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the analysis pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listKinds(cmd.Context(), client, os.Stdout)
	},
}

func listKinds(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.get(ctx, "/kinds")
	if err != nil {
		return err
	}
	var kinds []api.KindInfo
	if err := decodeJSON(resp, &kinds); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tFILE")
	for _, k := range kinds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Name, k.Title, k.FileName)
	}
	return tw.Flush()
}

// --- input ---

var inputCmd = &cobra.Command{
	Use:   "input",
	Short: "Show or change the business input",
}

var inputShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored business input",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		text, err := getInput(cmd.Context(), client)
		if err != nil {
			return err
		}
		if text == "" {
			printWarning("no business input set")
			return nil
		}
		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

var inputSetCmd = &cobra.Command{
	Use:   "set [text]",
	Short: "Replace the business input",
	Long: `Replace the business input shared by every analysis page.

Examples:
  bizpulse input set "Acme Robotics, warehouse automation for mid-size retailers"
  bizpulse input set --file ./business.txt
  echo "Acme Robotics" | bizpulse input set -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var text string
		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		case len(args) == 1 && args[0] == "-":
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		case len(args) == 1:
			text = args[0]
		default:
			return fmt.Errorf("provide the input as an argument, with --file, or as - for stdin")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := setInput(cmd.Context(), client, text); err != nil {
			return err
		}
		printSuccess("Business input updated")
		return nil
	},
}

func init() {
	inputSetCmd.Flags().String("file", "", "read the input from a file")
	inputCmd.AddCommand(inputShowCmd)
	inputCmd.AddCommand(inputSetCmd)
}

func getInput(ctx context.Context, c *apiClient) (string, error) {
	resp, err := c.get(ctx, "/input")
	if err != nil {
		return "", err
	}
	var body api.InputBody
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Text, nil
}

func setInput(ctx context.Context, c *apiClient, text string) error {
	resp, err := c.put(ctx, "/input", api.InputBody{Text: text})
	if err != nil {
		return err
	}
	var body api.InputBody
	return decodeJSON(resp, &body)
}

// --- analyze / submit ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [kind]",
	Short: "Open an analysis page and print its result",
	Long: `Open an analysis page for the stored business input. A cached result is
printed at once; otherwise a single completion is requested.

Examples:
  bizpulse analyze feature-priority
  bizpulse analyze market-assessment --input "Acme Robotics"
  bizpulse analyze --all`,
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return kindArg(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		input, _ := cmd.Flags().GetString("input")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if cmd.Flags().Changed("input") {
			if err := setInput(ctx, client, input); err != nil {
				return err
			}
		}
		if all {
			return analyzeAll(ctx, client, os.Stdout)
		}
		return openPage(ctx, client, os.Stdout, args[0])
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <kind>",
	Short: "Request a fresh analysis for the current input",
	Args:  kindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return submitPage(cmd.Context(), client, os.Stdout, args[0])
	},
}

func init() {
	analyzeCmd.Flags().Bool("all", false, "analyze every page concurrently")
	analyzeCmd.Flags().String("input", "", "replace the business input first")
}

func openPage(ctx context.Context, c *apiClient, w io.Writer, kind string) error {
	return pageRequest(ctx, c, w, http.MethodGet, kind, "")
}

func submitPage(ctx context.Context, c *apiClient, w io.Writer, kind string) error {
	return pageRequest(ctx, c, w, http.MethodPost, kind, "/submit")
}

func pageRequest(ctx context.Context, c *apiClient, w io.Writer, method, kind, suffix string) error {
	path := "/pages/" + url.PathEscape(kind) + suffix
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	var snap page.Snapshot
	if err := decodeJSON(resp, &snap); err != nil {
		return err
	}
	printSnapshot(w, snap)
	if snap.State == page.Failed {
		return errAnalysisFailed
	}
	return nil
}

func analyzeAll(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.post(ctx, "/analyze", nil)
	if err != nil {
		return err
	}
	var snaps []page.Snapshot
	if err := decodeJSON(resp, &snaps); err != nil {
		return err
	}
	failed := 0
	for i, s := range snaps {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printSnapshot(w, s)
		if s.State == page.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d pages", errAnalysisFailed, failed, len(snaps))
	}
	return nil
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <kind>",
	Short: "Save the displayed analysis of a page as PDF",
	Args:  kindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path, n, err := exportPage(cmd.Context(), client, args[0], output)
		if err != nil {
			return err
		}
		printSuccess("Wrote %s (%d bytes)", path, n)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output path (default: the report's file name)")
}

// exportPage downloads the PDF of kind and writes it to output, or to the
// file name the server suggests when output is empty.
func exportPage(ctx context.Context, c *apiClient, kind, output string) (string, int, error) {
	resp, err := c.get(ctx, "/pages/"+url.PathEscape(kind)+"/export")
	if err != nil {
		return "", 0, err
	}
	disposition := resp.Header.Get("Content-Disposition")
	data, err := readBody(resp)
	if err != nil {
		return "", 0, err
	}

	if output == "" {
		output = attachmentName(disposition)
	}
	if output == "" {
		if k, ok := analysis.Lookup(kind); ok {
			output = k.FileName
		} else {
			output = kind + ".pdf"
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("writing %s: %w", output, err)
	}
	return output, len(data), nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear stored analyses",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listCache(cmd.Context(), client, os.Stdout, prefix)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every stored analysis (the business input is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			return fmt.Errorf("refusing to purge without --confirm")
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		n, err := purgeCache(cmd.Context(), client)
		if err != nil {
			return err
		}
		printSuccess("Deleted %d stored analyses", n)
		return nil
	},
}

func init() {
	cacheListCmd.Flags().String("prefix", "", "only keys starting with this prefix, e.g. featureAnalysis_")
	cachePurgeCmd.Flags().Bool("confirm", false, "confirm deletion")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

func fetchRecords(ctx context.Context, c *apiClient, prefix string) ([]api.RecordInfo, error) {
	path := "/cache"
	if prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []api.RecordInfo
	if err := decodeJSON(resp, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func listCache(ctx context.Context, c *apiClient, w io.Writer, prefix string) error {
	records, err := fetchRecords(ctx, c, prefix)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printWarning("no stored analyses")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tUPDATED")
	for _, r := range records {
		updated := "-"
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Key, r.Size, updated)
	}
	return tw.Flush()
}

func countRecords(ctx context.Context, c *apiClient) (int, error) {
	records, err := fetchRecords(ctx, c, "")
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func purgeCache(ctx context.Context, c *apiClient) (int, error) {
	resp, err := c.delete(ctx, "/cache")
	if err != nil {
		return 0, err
	}
	var out map[string]int
	if err := decodeJSON(resp, &out); err != nil {
		return 0, err
	}
	return out["deleted"], nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadForDisplay()
		if err != nil {
			return err
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s", args[0])
		printStep("Restart the server for the change to take effect")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func printConfig(w io.Writer, cfg config.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tENV")
	for _, k := range config.ShowAll(cfg) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Key, k.Value, k.EnvVar)
	}
	tw.Flush()
}
