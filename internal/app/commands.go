package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mentorreport/internal/classify"
	"mentorreport/internal/discovery"
	"mentorreport/internal/pipeline"
	"mentorreport/internal/preprocess"
	"mentorreport/internal/report"
	"mentorreport/internal/schedule"
	"mentorreport/internal/storage"
)

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#00AFAF")).
	Padding(0, 1)

func banner() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AFAF")).Render("Automated Mentoring Report Generator")
	sub := lipgloss.NewStyle().Faint(true).Render("Comprehensive 11-Section Business Analysis for Greek SMEs")
	return bannerStyle.Render(title + "\n" + sub)
}

func generateCommand(withEnv envRunner) *cobra.Command {
	var afm string
	cmd := &cobra.Command{
		Use:   "generate [directory]",
		Short: "Generate the full report for a folder or an AFM",
		Long: `Generate runs discovery, classification, the eleven section generations
and rendering. Pass a folder, or --afm to fetch the company's SharePoint
mentoring folder. Without either, you are asked which one to use.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			src := pipeline.Source{AFM: strings.TrimSpace(afm)}
			if len(args) == 1 {
				src.Dir = args[0]
			}
			if src.AFM == "" && src.Dir == "" {
				var err error
				if src, err = PromptSource(e.in, e.out); err != nil {
					return err
				}
			}

			fmt.Fprintln(e.out, banner())
			fmt.Fprintf(e.out, "\nGeneration started: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
			_, err := runGenerate(cmd, e, src)
			return err
		}),
	}
	cmd.Flags().StringVar(&afm, "afm", "", "Company AFM to fetch from SharePoint")
	return cmd
}

// runGenerate runs one pipeline and prints its summary panel.
func runGenerate(cmd *cobra.Command, e *env, src pipeline.Source) (pipeline.Result, error) {
	p, cleanup, err := newPipeline(cmd.Context(), e, src)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer cleanup()

	res, err := p.Run(cmd.Context(), src)
	fmt.Fprintln(e.out, pipeline.Summary(res, err))
	return res, err
}

func preprocessCommand(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess <directory> [output.json]",
		Short: "Extract structured data from the documents of a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			output := filepath.Join(args[0], pipeline.PreprocessedFile)
			if len(args) == 2 {
				output = args[1]
			}
			res, err := preprocess.PreprocessDirectory(args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Processed %d files: %s\n", res.TotalFiles, preprocess.FormatStatusSummary(res.StatusCounts()))
			fmt.Fprintf(e.out, "Saved preprocessed data to: %s\n", output)
			return nil
		}),
	}
}

func classifyCommand(withEnv envRunner) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "classify <directory>",
		Short: "Classify the documents of a folder into report sections",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			files, err := discovery.Discover(dir)
			if err != nil {
				return err
			}
			pre, err := preprocess.PreprocessDirectory(dir, "")
			if err != nil {
				e.logger.Warn("preprocess failed", zap.Error(err))
			}
			runner, _ := newRunner(e)
			c := classify.New(runner, classify.Options{
				Model:     e.cfg.ClassifyModel,
				Timeout:   e.cfg.ClassifyTimeout(),
				KeepEmpty: e.cfg.ClassifyKeepEmpty,
			}, e.logger)
			mapping, details, err := c.Classify(cmd.Context(), files, pre.ByPath())
			if err != nil {
				return err
			}

			fmt.Fprintln(e.out, pipeline.ClassificationTable(mapping))
			if output == "" {
				enc := json.NewEncoder(e.out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(details)
			}
			if err := report.WriteJSON(output, pipeline.RelativeMapping(mapping, dir)); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Saved section mapping to: %s\n", output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the section mapping JSON here instead of printing the details")
	return cmd
}

func renderCommand(withEnv envRunner) *cobra.Command {
	var (
		preview  bool
		stamped  bool
		pdf      bool
		template string
		logo     string
		width    int
	)
	cmd := &cobra.Command{
		Use:   "render <report.json> [output.html]",
		Short: "Render a compiled report JSON to HTML",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			jsonPath := args[0]
			rep, err := report.LoadReport(jsonPath)
			if err != nil {
				return err
			}
			if preview {
				md, err := report.RenderMarkdown(rep)
				if err != nil {
					return err
				}
				out, err := report.Preview(md, width)
				if err != nil {
					return err
				}
				fmt.Fprint(e.out, out)
				return nil
			}

			output := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".html"
			switch {
			case len(args) == 2:
				output = args[1]
			case stamped:
				output = report.OutputFilename(rep, filepath.Dir(jsonPath), time.Now())
			}
			if template == "" {
				template = e.cfg.TemplatePath
			}
			if logo == "" {
				logo = e.cfg.LogoPath
			}
			if err := report.Render(jsonPath, output, template, logo); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Report generated: %s\n", output)

			if pdf {
				pdfPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".pdf"
				if err := report.ExportPDF(cmd.Context(), output, pdfPath); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "PDF exported: %s\n", pdfPath)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Print the report as styled markdown instead of writing HTML")
	cmd.Flags().BoolVar(&stamped, "stamped", false, "Name the output mentoring_report_<AFM>_<timestamp>.html")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "Also export the HTML to PDF with a headless browser")
	cmd.Flags().StringVar(&template, "template", "", "HTML template (defaults to config, then the built-in template)")
	cmd.Flags().StringVar(&logo, "logo", "", "Logo image embedded in the header")
	cmd.Flags().IntVar(&width, "width", 100, "Preview word wrap width")
	return cmd
}

func sharepointCommand(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sharepoint",
		Short: "Search and download company folders from SharePoint",
	}

	var dest string
	download := &cobra.Command{
		Use:   "download <afm>",
		Short: "Download the mentoring folder of a company",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			client, err := newSharePoint(cmd.Context(), e)
			if err != nil {
				return err
			}
			afm := strings.TrimSpace(args[0])
			if dest == "" {
				dest = filepath.Join(e.cfg.WorkingDir, afm+"_"+time.Now().Format("20060102_150405"))
			}
			files, err := client.DownloadForAFM(cmd.Context(), afm, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Downloaded %d files to %s\n", len(files), dest)
			return nil
		}),
	}
	download.Flags().StringVar(&dest, "dest", "", "Destination folder (defaults to working_dir/<afm>_<timestamp>)")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "List folders whose name matches a query",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			client, err := newSharePoint(cmd.Context(), e)
			if err != nil {
				return err
			}
			folders, err := client.SearchFolders(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(folders) == 0 {
				fmt.Fprintf(e.out, "No folders found for %q\n", args[0])
				return nil
			}
			t := table.New().Border(lipgloss.NormalBorder()).Headers("Folder", "Modified", "URL")
			for _, f := range folders {
				t.Row(f.Name, f.LastModified.Local().Format("2006-01-02 15:04"), f.WebURL)
			}
			fmt.Fprintln(e.out, t.Render())
			return nil
		}),
	}

	cmd.AddCommand(download, search)
	return cmd
}

func transcribeCommand(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <video> [output-dir]",
		Short: "Transcribe a video or audio recording with Whisper",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			t, err := newTranscriber(e)
			if err != nil {
				return err
			}
			outDir := filepath.Dir(args[0])
			if len(args) == 2 {
				outDir = args[1]
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}
			path, err := t.TranscribeAndSave(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Transcript saved: %s\n", path)
			return nil
		}),
	}
}

func scheduleCommand(withEnv envRunner) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate reports for scheduled_afms on schedule_cron",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			if !e.cfg.SharePointConfigured() {
				return errors.New("scheduled runs fetch from SharePoint; SHAREPOINT_* settings are missing")
			}
			job := func(_ context.Context, afm string) error {
				_, err := runGenerate(cmd, e, pipeline.Source{AFM: afm})
				return err
			}
			if once {
				res := schedule.RunBatch(cmd.Context(), e.cfg.ScheduledAFMs, job, e.logger)
				fmt.Fprintf(e.out, "Batch complete: %s\n", res.Summary())
				if len(res.Failed) > 0 {
					return fmt.Errorf("%d scheduled runs failed", len(res.Failed))
				}
				return nil
			}
			return schedule.Loop(cmd.Context(), e.cfg.ScheduleCron, e.cfg.Location, e.cfg.ScheduledAFMs, job, e.logger)
		}),
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run the batch immediately and exit")
	return cmd
}

func historyCommand(withEnv envRunner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the sections of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			store, err := storage.Open(e.cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return printRun(e, store, args[0])
			}
			runs, err := store.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(e.out, "No runs recorded yet.")
				return nil
			}
			t := table.New().Border(lipgloss.NormalBorder()).
				Headers("Run", "Started", "AFM", "Company", "Status", "Sections", "Output")
			for _, r := range runs {
				t.Row(r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.AFM, r.CompanyName, r.Status,
					fmt.Sprintf("%d ok / %d failed", r.SectionsOK, r.SectionsFailed), r.OutputDir)
			}
			fmt.Fprintln(e.out, t.Render())
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent runs to list")
	return cmd
}

func printRun(e *env, store *storage.Store, id string) error {
	run, err := store.GetRun(id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	fmt.Fprintf(e.out, "Run %s (%s) %s\n", run.ID, run.Status, run.Source)
	if run.Error != "" {
		fmt.Fprintf(e.out, "Error: %s\n", run.Error)
	}

	results, err := store.SectionResults(id)
	if err != nil {
		return err
	}
	t := table.New().Border(lipgloss.NormalBorder()).Headers("Section", "Status", "Duration", "Error")
	for _, r := range results {
		t.Row(strconv.Itoa(r.Section), r.Status, pipeline.FormatElapsed(time.Duration(r.DurationMS)*time.Millisecond), r.Error)
	}
	fmt.Fprintln(e.out, t.Render())

	classes, err := store.Classifications(id)
	if err != nil {
		return err
	}
	for _, c := range classes {
		fmt.Fprintf(e.out, "%s -> [%s] %s\n", c.Filename, c.Sections, c.Reasoning)
	}
	return nil
}
