package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PocKeTio/Reco/cmd/reco/config"
	"github.com/PocKeTio/Reco/internal/reconciler"
	"github.com/PocKeTio/Reco/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	invoiceFile  string
	paymentFiles []string
	bankFormat   string
	outputFormat string
	outputFile   string
	startDate    string
	endDate      string
	showProgress bool

	// Matching flags
	matchingProfile     string
	autoThreshold       int
	suggestionThreshold int
	amountTolerance     float64
	maxGroupSize        int
	noComplexMatching   bool
	noPatternLearning   bool
	noAutoValidate      bool

	// Pipeline flags
	enablePreprocessing bool
	minAmount           float64
	maxAmount           float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile incoming payments with open invoices",
	Long: `Reconcile compares incoming bank payments with open invoices to
identify matches, multi-record combinations, and unmatched payments.

This command requires:
- An invoice file (CSV format)
- One or more payment files (CSV format)

Examples:
  # Basic reconciliation with format auto-detection
  reco reconcile --invoice-file invoices.csv --payment-files payments.csv

  # Multiple payment files with date filtering
  reco reconcile --invoice-file inv.csv --payment-files bank1.csv,bank2.csv \
    --start-date 2024-01-01 --end-date 2024-01-31

  # Explicit bank format, JSON output
  reco reconcile --invoice-file inv.csv --payment-files sepa.csv \
    --bank-format sepa --output-format json --output-file report.json

  # Strict matching without automatic validation
  reco reconcile --invoice-file inv.csv --payment-files pay.csv \
    --profile strict --no-auto-validate

  # Custom thresholds and complex matching limits
  reco reconcile --invoice-file inv.csv --payment-files pay.csv \
    --auto-threshold 90 --amount-tolerance 2.50 --max-group-size 3`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&invoiceFile, "invoice-file", "i", "", "path to invoice CSV file (required)")
	reconcileCmd.Flags().StringSliceVarP(&paymentFiles, "payment-files", "p", []string{}, "comma-separated paths to payment CSV files (required)")

	// Input format flags
	reconcileCmd.Flags().StringVar(&bankFormat, "bank-format", "", "bank export format: standard, sepa, legacy (default: auto-detect)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Date filtering flags
	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "filter start date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "filter end date (YYYY-MM-DD)")

	// Matching configuration flags
	reconcileCmd.Flags().StringVar(&matchingProfile, "profile", "default", "matching profile: default, strict, relaxed")
	reconcileCmd.Flags().IntVar(&autoThreshold, "auto-threshold", -1, "score threshold for automatic validation (0-100)")
	reconcileCmd.Flags().IntVar(&suggestionThreshold, "suggestion-threshold", -1, "score threshold for suggestions (0-100)")
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", -1, "absolute amount tolerance for close matches and combinations")
	reconcileCmd.Flags().IntVar(&maxGroupSize, "max-group-size", 0, "maximum records combined in a complex match")
	reconcileCmd.Flags().BoolVar(&noComplexMatching, "no-complex", false, "disable N:1 and 1:N combination matching")
	reconcileCmd.Flags().BoolVar(&noPatternLearning, "no-pattern-learning", false, "disable the client pattern scorer")
	reconcileCmd.Flags().BoolVar(&noAutoValidate, "no-auto-validate", false, "keep high-confidence matches in the proposed state")

	// Pipeline flags
	reconcileCmd.Flags().BoolVar(&enablePreprocessing, "preprocess", true, "normalize and validate records before matching")
	reconcileCmd.Flags().Float64Var(&minAmount, "min-amount", -1, "ignore unmatched payments below this amount in the report")
	reconcileCmd.Flags().Float64Var(&maxAmount, "max-amount", -1, "ignore unmatched payments above this amount in the report")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("invoice-file")
	reconcileCmd.MarkFlagRequired("payment-files")

	// Bind flags to viper
	viper.BindPFlag("invoice-file", reconcileCmd.Flags().Lookup("invoice-file"))
	viper.BindPFlag("payment-files", reconcileCmd.Flags().Lookup("payment-files"))
	viper.BindPFlag("bank-format", reconcileCmd.Flags().Lookup("bank-format"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("start-date", reconcileCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("end-date", reconcileCmd.Flags().Lookup("end-date"))
	viper.BindPFlag("profile", reconcileCmd.Flags().Lookup("profile"))
	viper.BindPFlag("auto-threshold", reconcileCmd.Flags().Lookup("auto-threshold"))
	viper.BindPFlag("suggestion-threshold", reconcileCmd.Flags().Lookup("suggestion-threshold"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("max-group-size", reconcileCmd.Flags().Lookup("max-group-size"))
	viper.BindPFlag("no-complex", reconcileCmd.Flags().Lookup("no-complex"))
	viper.BindPFlag("no-pattern-learning", reconcileCmd.Flags().Lookup("no-pattern-learning"))
	viper.BindPFlag("no-auto-validate", reconcileCmd.Flags().Lookup("no-auto-validate"))
	viper.BindPFlag("preprocess", reconcileCmd.Flags().Lookup("preprocess"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	invoiceFile = viper.GetString("invoice-file")
	paymentFiles = viper.GetStringSlice("payment-files")
	bankFormat = viper.GetString("bank-format")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	startDate = viper.GetString("start-date")
	endDate = viper.GetString("end-date")
	matchingProfile = viper.GetString("profile")
	autoThreshold = viper.GetInt("auto-threshold")
	suggestionThreshold = viper.GetInt("suggestion-threshold")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	maxGroupSize = viper.GetInt("max-group-size")
	noComplexMatching = viper.GetBool("no-complex")
	noPatternLearning = viper.GetBool("no-pattern-learning")
	noAutoValidate = viper.GetBool("no-auto-validate")
	enablePreprocessing = viper.GetBool("preprocess")
	showProgress = viper.GetBool("progress")

	// Validate required flags
	if invoiceFile == "" {
		return fmt.Errorf("invoice-file is required")
	}
	if len(paymentFiles) == 0 {
		return fmt.Errorf("at least one payment-file is required")
	}

	// Validate file existence
	if err := validateFileExists(invoiceFile, "invoice file"); err != nil {
		return err
	}

	for i, paymentFile := range paymentFiles {
		if err := validateFileExists(paymentFile, fmt.Sprintf("payment file %d", i+1)); err != nil {
			return err
		}
	}

	// Validate output format
	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	// Validate dates
	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
		}
	}
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			return fmt.Errorf("invalid end date format. Use YYYY-MM-DD: %w", err)
		}
	}

	// Validate date range
	if startDate != "" && endDate != "" {
		start, _ := time.Parse("2006-01-02", startDate)
		end, _ := time.Parse("2006-01-02", endDate)
		if start.After(end) {
			return fmt.Errorf("start date cannot be after end date")
		}
	}

	// Validate thresholds
	if autoThreshold > 100 {
		return fmt.Errorf("auto threshold cannot exceed 100")
	}
	if suggestionThreshold > 100 {
		return fmt.Errorf("suggestion threshold cannot exceed 100")
	}
	if autoThreshold >= 0 && suggestionThreshold >= 0 && suggestionThreshold > autoThreshold {
		return fmt.Errorf("suggestion threshold cannot exceed auto threshold")
	}

	// Validate amount bounds
	if minAmount >= 0 && maxAmount >= 0 && minAmount > maxAmount {
		return fmt.Errorf("min amount cannot exceed max amount")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Invoice file: %s\n", invoiceFile)
		fmt.Fprintf(os.Stderr, "Payment files: %s\n", strings.Join(paymentFiles, ", "))
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	invoiceConfig, err := config.CreateInvoiceParserConfig()
	if err != nil {
		return fmt.Errorf("failed to create invoice parser config: %w", err)
	}

	bankConfigs, err := config.CreateBankConfigs(paymentFiles, bankFormat)
	if err != nil {
		return fmt.Errorf("failed to create bank configs: %w", err)
	}

	matchingConfig, err := config.CreateMatchingConfig(matchingProfile, config.MatchingOverrides{
		AutoThreshold:       autoThreshold,
		SuggestionThreshold: suggestionThreshold,
		AmountTolerance:     amountTolerance,
		MaxGroupSize:        maxGroupSize,
		DisableComplex:      noComplexMatching,
		DisablePatterns:     noPatternLearning,
	})
	if err != nil {
		return fmt.Errorf("failed to create matching config: %w", err)
	}

	reconcilerConfig := config.CreateReconcilerConfig(showProgress, !noAutoValidate)

	// Create reconciliation service
	service, err := reconciler.NewReconciliationService(
		invoiceConfig,
		matchingConfig,
		reconcilerConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation service: %w", err)
	}

	// Parse date range
	var startTime, endTime *time.Time
	if startDate != "" {
		t, _ := time.Parse("2006-01-02", startDate)
		startTime = &t
	}
	if endDate != "" {
		t, _ := time.Parse("2006-01-02", endDate)
		// Set to end of day
		t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		endTime = &t
	}

	// Create reconciliation request
	request := &reconciler.ReconciliationRequest{
		InvoiceFile:   invoiceFile,
		PaymentFiles:  paymentFiles,
		StartDate:     startTime,
		EndDate:       endTime,
		InvoiceConfig: invoiceConfig,
		BankConfigs:   bankConfigs,
	}

	if showProgress {
		fmt.Fprintf(os.Stderr, "Processing reconciliation...\n")
	}

	// Run through the orchestrator when preprocessing or amount filtering
	// is requested, otherwise call the service directly
	var result *reconciler.ReconciliationResult
	useOrchestrator := enablePreprocessing || minAmount >= 0 || maxAmount >= 0
	if useOrchestrator {
		orchestrator, err := reconciler.NewReconciliationOrchestrator(service, reconciler.DefaultPreprocessingConfig())
		if err != nil {
			return fmt.Errorf("failed to create reconciliation orchestrator: %w", err)
		}

		if showProgress {
			orchestrator.AddProgressCallback(func(progress *reconciler.ReconciliationProgress) {
				fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
					progress.CompletedSteps, progress.TotalSteps,
					progress.CurrentStep, progress.PercentComplete)
			})
		}

		options := &reconciler.ReconciliationOptions{
			EnablePreprocessing: enablePreprocessing,
		}
		if minAmount >= 0 || maxAmount >= 0 {
			thresholds := &reconciler.AmountThresholds{}
			if minAmount >= 0 {
				lower := decimal.NewFromFloat(minAmount)
				thresholds.MinAmount = &lower
			}
			if maxAmount >= 0 {
				upper := decimal.NewFromFloat(maxAmount)
				thresholds.MaxAmount = &upper
			}
			options.AmountThresholds = thresholds
		}

		enhancedResult, err := orchestrator.ProcessReconciliationWithProgress(ctx, request, options)
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		result = enhancedResult.ReconciliationResult

		if showProgress {
			fmt.Fprintf(os.Stderr, "\n")
		}

		if viper.GetBool("verbose") && enhancedResult.DataQuality != nil {
			fmt.Fprintf(os.Stderr, "\nData quality:\n")
			fmt.Fprintf(os.Stderr, "  Match rate: %.1f%%\n", enhancedResult.DataQuality.MatchRate*100)
			fmt.Fprintf(os.Stderr, "  Auto-validate rate: %.1f%%\n", enhancedResult.DataQuality.AutoValidateRate*100)
			fmt.Fprintf(os.Stderr, "  Discrepancies: %d\n", enhancedResult.DataQuality.DiscrepancyCount)
			fmt.Fprintf(os.Stderr, "  Parse errors: %d\n", enhancedResult.DataQuality.ParseErrorCount)
			for _, warning := range enhancedResult.Warnings {
				fmt.Fprintf(os.Stderr, "  Warning: %s\n", warning)
			}
		}
	} else {
		basicResult, err := service.ProcessReconciliation(ctx, request)
		if err != nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		result = basicResult
	}

	// Generate report
	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d invoices and %d payments.\n",
			result.Summary.TotalInvoices, result.Summary.TotalPayments)
		fmt.Fprintf(os.Stderr, "Found %d auto-validated, %d suggested, %d complex groups, %d unmatched.\n",
			result.Summary.AutoValidated, result.Summary.Suggested,
			result.Summary.ComplexGroups, result.Summary.UnmatchedPayments)
		if len(result.Discrepancies) > 0 {
			fmt.Fprintf(os.Stderr, "Detected %d discrepancies.\n", len(result.Discrepancies))
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Summary.ProcessingDuration)
	}

	return nil
}
