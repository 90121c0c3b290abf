package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/livechat-analyzer/internal/checkpoint"
	"github.com/fpang/livechat-analyzer/internal/classify"
	"github.com/fpang/livechat-analyzer/internal/cli"
	"github.com/fpang/livechat-analyzer/internal/comment"
	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/dispatch"
	"github.com/fpang/livechat-analyzer/internal/logging"
	"github.com/fpang/livechat-analyzer/internal/questions"
	"github.com/fpang/livechat-analyzer/internal/ratelimit"
	"github.com/fpang/livechat-analyzer/internal/report"
	"github.com/fpang/livechat-analyzer/internal/usage"
)

// CLI flags
var (
	inputFlag         string
	companyFlag       string
	modelFlag         string
	outputDirFlag     string
	checkpointDirFlag string
	resumeFlag        bool
	freshFlag         bool
	transcriptFlag    string
	annotationsFlag   string
	rateLimitFlag     int
)

// rootCmd is the main Cobra command for the chat-analyze CLI.
var rootCmd = &cobra.Command{
	Use:   "chat-analyze",
	Short: "AI-powered live-stream chat analysis - classify comments and track question answers",
	Long: `Chat Analyze reads an exported live-stream chat CSV and classifies every
comment into an attribute (question, reaction, purchase report, ...) and a
sentiment using Gemini. Question comments are matched against an optional
stream transcript and an optional human-judged answer sheet to determine
whether they were answered.

Progress is checkpointed continuously: an interrupted or rate-limited run
can be resumed later without re-classifying finished comments.

Examples:
  chat-analyze --input chat_export.csv
  chat-analyze -i chat.csv --company マツココライブ --output-dir results
  chat-analyze -i chat.csv --transcript stream.txt --annotations answers.csv
  chat-analyze -i chat.csv --fresh  # ignore any existing checkpoint
  chat-analyze  # Interactive mode - prompts for the input file`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Chat export CSV to analyze")
	rootCmd.Flags().StringVar(&companyFlag, "company", config.DefaultCompany, "Company profile for official-account rules")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", classify.ModelName(), "Gemini model to use")
	rootCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", ".", "Directory for the output CSVs")
	rootCmd.Flags().StringVar(&checkpointDirFlag, "checkpoint-dir", ".", "Directory for checkpoint artifacts")
	rootCmd.Flags().BoolVar(&resumeFlag, "resume", false, "Resume from the latest checkpoint without asking")
	rootCmd.Flags().BoolVar(&freshFlag, "fresh", false, "Ignore existing checkpoints and start over")
	rootCmd.Flags().StringVar(&transcriptFlag, "transcript", "", "Stream transcript text for answer matching")
	rootCmd.Flags().StringVar(&annotationsFlag, "annotations", "", "Human-judged answer sheet CSV")
	rootCmd.Flags().IntVar(&rateLimitFlag, "rate-limit", ratelimit.DefaultCeiling, "API requests per minute")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	inputPath := inputFlag
	if inputPath == "" {
		inputPath = cli.PromptForFile("Chat export CSV")
	}
	inputPath = cli.ValidateAndResolveFile(inputPath)
	outputDir := cli.EnsureDir(outputDirFlag)
	checkpointDir := cli.EnsureDir(checkpointDirFlag)

	f, err := os.Open(inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", inputPath).Msg("failed to open chat export")
	}
	items, err := comment.LoadCSV(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("path", inputPath).Msg("failed to load chat export")
	}
	if len(items) == 0 {
		log.Fatal().Str("path", inputPath).Msg("chat export contains no comments")
	}

	company := config.CompanyByName(companyFlag)

	runLog := logging.NewRunLogger("chat-analyze").
		Input("chat", inputPath).
		Config("company", company.Name).
		Config("model", modelFlag).
		Config("rateLimit", strconv.Itoa(rateLimitFlag)).
		Config("outputDir", outputDir).
		Config("checkpointDir", checkpointDir).
		Feature("resume", resumeFlag).
		Feature("fresh", freshFlag)
	if transcriptFlag != "" {
		runLog.Input("transcript", transcriptFlag)
	}
	if annotationsFlag != "" {
		runLog.Input("annotations", annotationsFlag)
	}
	runLog.Log()

	ctx, model := cli.InitModel(modelFlag)
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store := selectStore(checkpointDir)

	dbg := log.Logger.Sample(&logging.FirstN{Max: 5})
	client := classify.NewClient(model, classify.ConfigForCompany(company), dbg)

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Live Chat Analysis")
	fmt.Println("============================================")
	fmt.Printf("Input: %s\n", inputPath)
	fmt.Printf("Comments: %d\n", len(items))
	fmt.Printf("Company: %s\n", company.Name)
	fmt.Printf("Model: %s\n", modelFlag)
	fmt.Println("--------------------------------------------")

	started := time.Now()
	d := dispatch.New(client, dispatch.Options{
		Store:      store,
		Limiter:    ratelimit.New(rateLimitFlag),
		RunID:      uuid.NewString(),
		OnProgress: progressPrinter(started),
	}, log.Logger)

	rep := d.Run(ctx, items)
	fmt.Println()

	switch rep.State {
	case dispatch.StateCancelled:
		fmt.Printf("Cancelled after %d/%d comments. Progress is checkpointed; rerun with --resume to continue.\n",
			len(rep.Results), len(items))
		printUsage(rep.Usage)
		return
	case dispatch.StateFailed:
		log.Error().Err(rep.Err).Msg("Classification run failed")
		fmt.Printf("Failed after %d/%d comments. Progress is checkpointed; rerun with --resume to continue.\n",
			len(rep.Results), len(items))
		printUsage(rep.Usage)
		os.Exit(1)
	}

	qs := analyzeQuestions(rep.Results)
	qstats := questions.Summarize(qs)
	writeOutputs(outputDir, inputPath, rep.Results, qs, qstats)

	summary := report.Summarize(rep.Results)
	fmt.Println("============================================")
	fmt.Println("Analysis Report")
	fmt.Println("============================================")
	fmt.Printf("Comments classified: %d\n", summary.Total)
	fmt.Printf("Elapsed: %s\n", cli.FormatDurationShort(time.Since(started)))
	fmt.Println()
	fmt.Println("Attributes")
	fmt.Println("--------------------------------------------")
	for _, c := range summary.AttributeCounts {
		fmt.Printf("   %-24s %d\n", c.Label, c.Count)
	}
	fmt.Println()
	fmt.Println("Sentiments")
	fmt.Println("--------------------------------------------")
	for _, c := range summary.SentimentCounts {
		fmt.Printf("   %-24s %d\n", c.Label, c.Count)
	}
	fmt.Println()
	fmt.Printf("Questions: %d (answered %d, %.1f%%)\n", qstats.Total, qstats.Answered, qstats.AnswerRate)
	printUsage(rep.Usage)
}

// selectStore picks the checkpoint artifact for this run: the most recent
// existing one when resuming, a fresh file otherwise.
func selectStore(dir string) *checkpoint.Store {
	if freshFlag {
		return checkpoint.NewStoreInDir(dir)
	}
	path, found := checkpoint.FindLatest(dir)
	if !found {
		return checkpoint.NewStoreInDir(dir)
	}
	if resumeFlag || cli.PromptYesNo(fmt.Sprintf("Found checkpoint %s. Resume from it?", filepath.Base(path))) {
		return checkpoint.NewStore(path)
	}
	return checkpoint.NewStoreInDir(dir)
}

// progressPrinter renders a single updating progress line with an ETA.
func progressPrinter(started time.Time) func(done, total int) {
	return func(done, total int) {
		elapsed := time.Since(started)
		var eta time.Duration
		if done > 0 {
			eta = elapsed / time.Duration(done) * time.Duration(total-done)
		}
		fmt.Printf("\r進捗: %d/%d (%.1f%%) %s   ",
			done, total, float64(done)/float64(total)*100, cli.FormatRemaining(eta))
	}
}

// analyzeQuestions extracts the question comments and layers the answer
// sources over them: transcript, then official replies, then human
// annotations (which win).
func analyzeQuestions(results []dispatch.ItemResult) []questions.Question {
	qs := questions.Extract(results)
	if len(qs) == 0 {
		return qs
	}

	if transcriptFlag != "" {
		path := cli.ValidateAndResolveFile(transcriptFlag)
		f, err := os.Open(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to open transcript")
		}
		segs, err := questions.ParseTranscript(f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to parse transcript")
		}
		questions.MatchTranscript(qs, segs)
	}

	questions.MatchOfficialReplies(qs, results)

	if annotationsFlag != "" {
		path := cli.ValidateAndResolveFile(annotationsFlag)
		f, err := os.Open(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to open annotation sheet")
		}
		anns, err := questions.LoadAnnotations(f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to parse annotation sheet")
		}
		questions.MatchAnnotations(qs, anns)
	}

	return qs
}

// writeOutputs writes the main sheet and, when there are questions, the
// question sheet next to it.
func writeOutputs(outputDir, inputPath string, results []dispatch.ItemResult, qs []questions.Question, qstats questions.Stats) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	mainPath := filepath.Join(outputDir, base+"_分析結果.csv")
	mf, err := os.Create(mainPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", mainPath).Msg("failed to create output file")
	}
	if err := report.WriteMainCSV(mf, results, report.Summarize(results)); err != nil {
		mf.Close()
		log.Fatal().Err(err).Str("path", mainPath).Msg("failed to write comment sheet")
	}
	if err := mf.Close(); err != nil {
		log.Fatal().Err(err).Str("path", mainPath).Msg("failed to finish comment sheet")
	}
	fmt.Printf("Wrote %s\n", mainPath)

	if len(qs) == 0 {
		return
	}
	qPath := filepath.Join(outputDir, base+"_質問.csv")
	qf, err := os.Create(qPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", qPath).Msg("failed to create question file")
	}
	if err := report.WriteQuestionCSV(qf, qs, qstats); err != nil {
		qf.Close()
		log.Fatal().Err(err).Str("path", qPath).Msg("failed to write question sheet")
	}
	if err := qf.Close(); err != nil {
		log.Fatal().Err(err).Str("path", qPath).Msg("failed to finish question sheet")
	}
	fmt.Printf("Wrote %s\n", qPath)
}

func printUsage(u usage.Usage) {
	fmt.Println()
	fmt.Println("API Usage")
	fmt.Println("--------------------------------------------")
	fmt.Printf("   Prompt tokens:     %d\n", u.Prompt)
	fmt.Printf("   Completion tokens: %d\n", u.Completion)
	fmt.Printf("   Total tokens:      %d\n", u.Total)
	fmt.Printf("   Estimated cost:    $%.4f\n", usage.EstimateCost(u))
}
