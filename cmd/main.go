package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/vasylivanchyk330/AWS-Automation/archive"
	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/confirm"
	"github.com/vasylivanchyk330/AWS-Automation/ledger"
	"github.com/vasylivanchyk330/AWS-Automation/logger"
	"github.com/vasylivanchyk330/AWS-Automation/provider"
	"github.com/vasylivanchyk330/AWS-Automation/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Define CLI flags
	var (
		// General flags
		kind        = flag.String("kind", "", "Resource kind: buckets, log-groups, stacks, event-rules, images, builder-images (env: SWEEP_KIND)")
		dryRun      = flag.Bool("dry-run", false, "Enumerate and report, delete nothing (env: DRY_RUN)")
		force       = flag.Bool("force", false, "Skip interactive confirmation (env: SWEEP_FORCE)")
		confirmEach = flag.Bool("confirm-each", false, "Prompt per target instead of once per run (env: SWEEP_CONFIRM_EACH)")
		failFast    = flag.Bool("fail-fast", false, "Stop after the first failed target (env: SWEEP_FAIL_FAST)")

		// Criteria flags
		cutoffDate = flag.String("cutoff-date", "", "Select resources created after this UTC moment, format 2006-01-02T15:04:05Z")
		untilDate  = flag.String("until-date", "", "Select resources created at or before this UTC moment")
		pattern    = flag.String("pattern", "", "Case-insensitive regular expression on resource names")
		names      = flag.String("names", "", "Comma-separated explicit resource names, merged with criteria matches")
		exclude    = flag.String("exclude", "", "Comma-separated names that are never selected")

		// Logger flags
		logLevel = flag.String("log-level", "", "Log level: silent, error, warn, info, debug, verbose (env: LOG_LEVEL)")

		// Engine flags
		workers     = flag.Int("workers", 0, "Concurrent deletion batches (env: ENGINE_WORKERS)")
		batchSize   = flag.Int("batch-size", 0, "Descriptors per deletion call (env: ENGINE_BATCH_SIZE)")
		maxRetries  = flag.Int("max-retries", 0, "Retry ceiling per batch on throttling (env: ENGINE_MAX_RETRIES)")
		baseBackoff = flag.Float64("base-backoff", 0, "Base backoff delay in seconds (env: ENGINE_BASE_BACKOFF_SEC)")
		maxRPS      = flag.Int("max-rps", -1, "Max requests per second toward the provider, 0 = no limit (env: ENGINE_MAX_RPS)")
		timeout     = flag.Int("timeout", 0, "Per-call timeout in seconds (env: ENGINE_TIMEOUT_SECONDS)")

		lifecycleWait = flag.Int("lifecycle-wait-minutes", 0, "Pause after applying bucket lifecycle rules (env: SWEEP_LIFECYCLE_WAIT_MINUTES)")

		// AWS flags
		awsRegion    = flag.String("aws-region", "", "AWS region (env: AWS_REGION)")
		awsAccessKey = flag.String("aws-access-key", "", "AWS access key ID (env: AWS_ACCESS_KEY_ID)")
		awsSecretKey = flag.String("aws-secret-key", "", "AWS secret access key (env: AWS_SECRET_ACCESS_KEY)")
		awsEndpoint  = flag.String("aws-endpoint", "", "Custom endpoint URL for local stacks (env: AWS_ENDPOINT_URL)")

		// Ledger flags
		logFile       = flag.String("log-file", "", "Explicit log artifact path (env: SWEEP_LOG_FILE)")
		logDir        = flag.String("log-dir", "", "Directory for generated log artifacts (env: SWEEP_LOG_DIR)")
		journalPath   = flag.String("journal-path", "", "Path to the run journal database (env: SWEEP_JOURNAL_PATH)")
		journalBucket = flag.String("journal-bucket", "", "Journal bucket name (env: SWEEP_JOURNAL_BUCKET)")

		// Archive flags
		archiveEnabled = flag.Bool("archive", false, "Upload the finished log artifact over FTP (env: ARCHIVE_ENABLED)")
		ftpHost        = flag.String("ftp-host", "", "Archive FTP server host (env: ARCHIVE_FTP_HOST)")
		ftpPort        = flag.Int("ftp-port", 0, "Archive FTP server port (env: ARCHIVE_FTP_PORT)")
		ftpUsername    = flag.String("ftp-username", "", "Archive FTP username (env: ARCHIVE_FTP_USERNAME)")
		ftpPassword    = flag.String("ftp-password", "", "Archive FTP password (env: ARCHIVE_FTP_PASSWORD)")
		ftpBasePath    = flag.String("ftp-base-path", "", "Archive FTP base path (env: ARCHIVE_FTP_BASE_PATH)")
		ftpUseTLS      = flag.Bool("ftp-use-tls", false, "Use FTPS for the archive (env: ARCHIVE_FTP_USE_TLS)")

		lastRun  = flag.Bool("last-run", false, "Print the most recent run from the journal and exit")
		showHelp = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		return 0
	}

	// Load base configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config from environment: %v\n", err)
		return 1
	}

	// Override with CLI flags if provided
	if *kind != "" {
		cfg.Kind = config.ResourceKind(*kind)
	}
	if flag.Lookup("dry-run").Value.String() == "true" {
		cfg.DryRun = *dryRun
	}
	if flag.Lookup("force").Value.String() == "true" {
		cfg.Force = *force
	}
	if flag.Lookup("confirm-each").Value.String() == "true" {
		cfg.ConfirmEach = *confirmEach
	}
	if flag.Lookup("fail-fast").Value.String() == "true" {
		cfg.FailFast = *failFast
	}
	if *cutoffDate != "" {
		t, err := config.ParseTime(*cutoffDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --cutoff-date: %v\n", err)
			return 1
		}
		cfg.Criteria.CutoffDate = &t
	}
	if *untilDate != "" {
		t, err := config.ParseTime(*untilDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --until-date: %v\n", err)
			return 1
		}
		cfg.Criteria.UntilDate = &t
	}
	if *pattern != "" {
		cfg.Criteria.Pattern = *pattern
	}
	if *names != "" {
		cfg.Criteria.Names = splitList(*names)
	}
	// Positional arguments are explicit resource names too.
	if args := flag.Args(); len(args) > 0 {
		cfg.Criteria.Names = append(cfg.Criteria.Names, args...)
	}
	if *exclude != "" {
		cfg.Criteria.Exclude = splitList(*exclude)
	}
	if *logLevel != "" {
		cfg.Logger.Level = config.LogLevel(*logLevel)
	}
	if *workers > 0 {
		cfg.Engine.Workers = *workers
	}
	if *batchSize > 0 {
		cfg.Engine.BatchSize = *batchSize
	}
	if *maxRetries > 0 {
		cfg.Engine.MaxRetries = *maxRetries
	}
	if *baseBackoff > 0 {
		cfg.Engine.BaseBackoffSec = *baseBackoff
	}
	if *maxRPS >= 0 {
		// Allow 0 (no limit) to be explicitly set
		cfg.Engine.MaxRPS = *maxRPS
	}
	if *timeout > 0 {
		cfg.Engine.TimeoutSeconds = *timeout
	}
	if *lifecycleWait > 0 {
		cfg.LifecycleWaitMinutes = *lifecycleWait
	}
	if *awsRegion != "" {
		cfg.AWS.Region = *awsRegion
	}
	if *awsAccessKey != "" {
		cfg.AWS.AccessKeyID = *awsAccessKey
	}
	if *awsSecretKey != "" {
		cfg.AWS.SecretAccessKey = *awsSecretKey
	}
	if *awsEndpoint != "" {
		cfg.AWS.Endpoint = *awsEndpoint
	}
	if *logFile != "" {
		cfg.Ledger.LogFile = *logFile
	}
	if *logDir != "" {
		cfg.Ledger.LogDir = *logDir
	}
	if *journalPath != "" {
		if cfg.Ledger.Journal == nil {
			cfg.Ledger.Journal = &config.JournalConfig{}
		}
		cfg.Ledger.Journal.Path = *journalPath
	}
	if *journalBucket != "" && cfg.Ledger.Journal != nil {
		cfg.Ledger.Journal.Bucket = *journalBucket
	}
	if flag.Lookup("archive").Value.String() == "true" {
		cfg.Archive.Enabled = *archiveEnabled
	}
	if cfg.Archive.Enabled && cfg.Archive.FTP == nil {
		cfg.Archive.FTP = &config.FTPConfig{}
	}
	if cfg.Archive.FTP != nil {
		if *ftpHost != "" {
			cfg.Archive.FTP.Host = *ftpHost
		}
		if *ftpPort > 0 {
			cfg.Archive.FTP.Port = *ftpPort
		}
		if *ftpUsername != "" {
			cfg.Archive.FTP.Username = *ftpUsername
		}
		if *ftpPassword != "" {
			cfg.Archive.FTP.Password = *ftpPassword
		}
		if *ftpBasePath != "" {
			cfg.Archive.FTP.BasePath = *ftpBasePath
		}
		if flag.Lookup("ftp-use-tls").Value.String() == "true" {
			cfg.Archive.FTP.UseTLS = *ftpUseTLS
		}
	}

	cfg.ApplyDefaults()

	// Query mode: report the most recent journaled run and exit.
	if *lastRun {
		return printLastRun(cfg)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		return 1
	}

	// The ledger owns the log artifact path; everything below logs into it.
	led, err := ledger.New(&cfg.Ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize run ledger: %v\n", err)
		return 1
	}

	tee, err := logger.NewTeeWriter(led.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log artifact: %v\n", err)
		return 1
	}

	log := logger.NewDedupLogger(logger.NewLoggerWithWriter(&cfg.Logger, tee))
	log.Info("Starting resource teardown: kind=%s", cfg.Kind)
	log.Debug("Configuration loaded and validated")

	// Initialize AWS clients
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := provider.LoadAWSConfig(ctx, &cfg.AWS)
	if err != nil {
		log.Error("Failed to load AWS configuration: %v", err)
		tee.Close()
		return 1
	}

	policy := confirm.NewPolicy(cfg.Force, cfg.ConfirmEach, os.Stdin, os.Stdout)
	r := runner.NewRunner(cfg, log, led, policy, awsCfg)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Run(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("Run failed: %v", err)
		}
	case sig := <-sigChan:
		log.Info("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		if err := <-errChan; err != nil && err != context.Canceled {
			log.Error("Error during shutdown: %v", err)
		}
	}

	return finalize(cfg, led, log, tee)
}

// finalize reports totals, settles the artifact name, records the run in the
// journal and optionally ships the artifact to the archive.
func finalize(cfg *config.AppConfig, led *ledger.RunLedger, log logger.Logger, tee *logger.TeeWriter) int {
	totals := led.Totals()
	log.Info("Run totals: matched=%d deleted=%d already-absent=%d failed=%d batches=%d elapsed=%s",
		totals.Matched, totals.Deleted, totals.AlreadyAbsent, totals.Failed, totals.Batches, totals.Elapsed)
	if led.Failed() {
		log.Error("Run finished with failures")
	} else {
		log.Info("Run completed successfully")
	}

	// Close the artifact before renaming or uploading it
	if err := tee.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing log artifact: %v\n", err)
	}

	finalPath, err := led.Finalize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finalizing log artifact: %v\n", err)
	}

	if cfg.Ledger.Journal != nil {
		if err := appendJournal(cfg, led); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing run journal: %v\n", err)
		}
	}

	if cfg.Archive.Enabled {
		if err := uploadArtifact(cfg, finalPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error archiving log artifact: %v\n", err)
		}
	}

	fmt.Printf("THE LOG FILE LOCATION IS: %s\n", finalPath)
	return led.ExitCode()
}

func appendJournal(cfg *config.AppConfig, led *ledger.RunLedger) error {
	journal, err := ledger.NewJournal(cfg.Ledger.Journal)
	if err != nil {
		return err
	}
	defer journal.Close()
	return journal.Append(ledger.NewRunRecord(string(cfg.Kind), led))
}

// printLastRun reports the most recent journal entry: the audit counterpart
// of the run journal written by finalize.
func printLastRun(cfg *config.AppConfig) int {
	if cfg.Ledger.Journal == nil {
		fmt.Fprintln(os.Stderr, "No journal configured; set --journal-path or SWEEP_JOURNAL_PATH")
		return 1
	}

	journal, err := ledger.NewJournal(cfg.Ledger.Journal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run journal: %v\n", err)
		return 1
	}
	defer journal.Close()

	rec, err := journal.LastRun()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run journal: %v\n", err)
		return 1
	}

	verdict := "succeeded"
	if rec.Failed {
		verdict = "FAILED"
	}
	fmt.Printf("Last run: %s\n", rec.ID)
	fmt.Printf("  kind:     %s\n", rec.Kind)
	fmt.Printf("  started:  %s\n", rec.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  finished: %s\n", rec.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  verdict:  %s\n", verdict)
	fmt.Printf("  counts:   matched=%d deleted=%d already-absent=%d failed=%d\n",
		rec.Matched, rec.Deleted, rec.AlreadyAbsent, rec.FailedItems)
	fmt.Printf("  log file: %s\n", rec.LogFile)
	for _, s := range rec.Stages {
		line := fmt.Sprintf("  stage %s/%s: %s after %d attempt(s)", s.Target, s.Stage, s.State, s.Attempts)
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Println(line)
	}
	return 0
}

func uploadArtifact(cfg *config.AppConfig, path string) error {
	archiver, err := archive.NewFTPArchiver(&cfg.Archive)
	if err != nil {
		return err
	}
	defer archiver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	name := filepath.Base(path)
	exists, err := archiver.Exists(ctx, name)
	if err == nil && exists {
		return fmt.Errorf("artifact %s already archived, not overwriting", name)
	}

	return archiver.Upload(ctx, name, func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printHelp() {
	fmt.Println("AWS Resource Teardown Tool")
	fmt.Println()
	fmt.Println("Usage: aws-sweep [options] [name ...]")
	fmt.Println()
	fmt.Println("Configuration can be provided via environment variables or command-line flags.")
	fmt.Println("Command-line flags take precedence over environment variables.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  aws-sweep --kind=buckets --pattern='^test-' --dry-run")
	fmt.Println("  aws-sweep --kind=log-groups --cutoff-date=2024-01-01T00:00:00Z --until-date=2024-06-01T00:00:00Z --force")
	fmt.Println("  aws-sweep --kind=stacks --force staging-db staging-api")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  SWEEP_KIND                   - Resource kind (buckets, log-groups, stacks, event-rules, images, builder-images)")
	fmt.Println("  DRY_RUN                      - Enumerate and report only (true/false)")
	fmt.Println("  SWEEP_FORCE                  - Skip interactive confirmation (true/false)")
	fmt.Println("  SWEEP_CONFIRM_EACH           - Prompt per target (true/false)")
	fmt.Println("  SWEEP_FAIL_FAST              - Stop after the first failed target (true/false)")
	fmt.Println("  SWEEP_LIFECYCLE_WAIT_MINUTES - Pause after applying bucket lifecycle rules")
	fmt.Println("  LOG_LEVEL                    - Log level (silent, error, warn, info, debug, verbose)")
	fmt.Println("  ENGINE_WORKERS               - Concurrent deletion batches")
	fmt.Println("  ENGINE_BATCH_SIZE            - Descriptors per deletion call")
	fmt.Println("  ENGINE_MAX_RETRIES           - Retry ceiling per batch on throttling")
	fmt.Println("  ENGINE_BASE_BACKOFF_SEC      - Base backoff delay in seconds")
	fmt.Println("  ENGINE_MAX_RPS               - Max requests per second (0 = no limit)")
	fmt.Println("  ENGINE_TIMEOUT_SECONDS       - Per-call timeout in seconds")
	fmt.Println("  AWS_REGION                   - AWS region")
	fmt.Println("  AWS_ACCESS_KEY_ID            - AWS access key ID")
	fmt.Println("  AWS_SECRET_ACCESS_KEY        - AWS secret access key")
	fmt.Println("  AWS_ENDPOINT_URL             - Custom endpoint URL for local stacks")
	fmt.Println("  SWEEP_LOG_FILE               - Explicit log artifact path")
	fmt.Println("  SWEEP_LOG_DIR                - Directory for generated log artifacts")
	fmt.Println("  SWEEP_JOURNAL_PATH           - Path to the run journal database")
	fmt.Println("  SWEEP_JOURNAL_BUCKET         - Journal bucket name")
	fmt.Println("  ARCHIVE_ENABLED              - Upload the finished artifact over FTP (true/false)")
	fmt.Println("  ARCHIVE_FTP_HOST             - Archive FTP server host")
	fmt.Println("  ARCHIVE_FTP_PORT             - Archive FTP server port")
	fmt.Println("  ARCHIVE_FTP_USERNAME         - Archive FTP username")
	fmt.Println("  ARCHIVE_FTP_PASSWORD         - Archive FTP password")
	fmt.Println("  ARCHIVE_FTP_BASE_PATH        - Archive FTP base path")
	fmt.Println("  ARCHIVE_FTP_USE_TLS          - Use FTPS (true/false)")
}
