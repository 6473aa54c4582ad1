package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		description string
		expectError bool
	}{
		{
			name:        "valid file",
			filePath:    validFile,
			description: "test file",
			expectError: false,
		},
		{
			name:        "empty path",
			filePath:    "",
			description: "test file",
			expectError: true,
		},
		{
			name:        "non-existent file",
			filePath:    "/non/existent/file.csv",
			description: "test file",
			expectError: true,
		},
		{
			name:        "directory instead of file",
			filePath:    tmpDir,
			description: "test file",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, tt.description)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateReconcileFlags(t *testing.T) {
	tmpDir := t.TempDir()
	invoicePath := filepath.Join(tmpDir, "invoices.csv")
	paymentPath := filepath.Join(tmpDir, "payments.csv")

	if err := os.WriteFile(invoicePath, []byte("invoice_id,reference,client_name,amount,due_date,status\nINV001,FAC-001,Acme,100.00,2024-01-15,OPEN"), 0644); err != nil {
		t.Fatalf("failed to create invoice file: %v", err)
	}
	if err := os.WriteFile(paymentPath, []byte("payment_id,reference,client_name,amount,reception_date\nPAY001,FAC-001,Acme,100.00,2024-01-16"), 0644); err != nil {
		t.Fatalf("failed to create payment file: %v", err)
	}

	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name: "valid flags",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
			},
			expectError: false,
		},
		{
			name: "missing invoice file",
			setupFlags: func() {
				viper.Set("invoice-file", "")
				viper.Set("payment-files", []string{paymentPath})
			},
			expectError:   true,
			errorContains: "invoice-file is required",
		},
		{
			name: "missing payment files",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{})
			},
			expectError:   true,
			errorContains: "at least one payment-file is required",
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "invalid")
			},
			expectError:   true,
			errorContains: "invalid output format",
		},
		{
			name: "invalid start date",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
				viper.Set("start-date", "invalid-date")
			},
			expectError:   true,
			errorContains: "invalid start date format",
		},
		{
			name: "start date after end date",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
				viper.Set("start-date", "2024-01-31")
				viper.Set("end-date", "2024-01-01")
			},
			expectError:   true,
			errorContains: "start date cannot be after end date",
		},
		{
			name: "auto threshold too high",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
				viper.Set("auto-threshold", 150)
			},
			expectError:   true,
			errorContains: "auto threshold cannot exceed 100",
		},
		{
			name: "suggestion above auto",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
				viper.Set("auto-threshold", 70)
				viper.Set("suggestion-threshold", 80)
			},
			expectError:   true,
			errorContains: "suggestion threshold cannot exceed auto threshold",
		},
		{
			name: "nonexistent output directory",
			setupFlags: func() {
				viper.Set("invoice-file", invoicePath)
				viper.Set("payment-files", []string{paymentPath})
				viper.Set("output-format", "console")
				viper.Set("output-file", "/non/existent/dir/report.txt")
			},
			expectError:   true,
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper
			viper.Reset()
			minAmount, maxAmount = -1, -1
			tt.setupFlags()

			cmd := &cobra.Command{}
			err := validateReconcileFlags(cmd, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestReconcileCommandHelp(t *testing.T) {
	cmd := reconcileCmd

	// Test that command has required flags
	for _, flagName := range []string{"invoice-file", "payment-files", "bank-format", "output-format", "profile", "auto-threshold", "no-complex"} {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("%s flag not found", flagName)
		}
	}

	// Test help output contains key information
	var helpOutput bytes.Buffer
	cmd.SetOut(&helpOutput)
	cmd.Help()

	helpText := helpOutput.String()

	expectedSections := []string{
		"Usage:",
		"Examples:",
		"Flags:",
		"--invoice-file",
		"--payment-files",
		"--output-format",
	}

	for _, section := range expectedSections {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestReconcileFlagDefaults(t *testing.T) {
	cmd := reconcileCmd

	tests := []struct {
		flagName string
		want     string
	}{
		{"output-format", "console"},
		{"bank-format", ""},
		{"profile", "default"},
		{"auto-threshold", "-1"},
		{"suggestion-threshold", "-1"},
		{"amount-tolerance", "-1"},
		{"max-group-size", "0"},
		{"no-complex", "false"},
		{"no-pattern-learning", "false"},
		{"no-auto-validate", "false"},
		{"preprocess", "true"},
		{"progress", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("flag '%s' not found", tt.flagName)
			}
			if flag.DefValue != tt.want {
				t.Errorf("flag '%s' default = %q, want %q", tt.flagName, flag.DefValue, tt.want)
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "reco" {
		t.Errorf("root command use = %q, want reco", rootCmd.Use)
	}

	found := false
	for _, sub := range rootCmd.Commands() {
		if sub.Name() == "reconcile" {
			found = true
			break
		}
	}
	if !found {
		t.Error("reconcile subcommand not registered")
	}

	SetVersionInfo("1.2.3", "abc123", "2024-01-01")
	if rootCmd.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", rootCmd.Version)
	}
}
