package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"broker-fee-reconciler/pkg/errors"
)

var statementHeaders = []string{
	"Date", "Side", "Qty", "Symbol", "Description", "Price", "Exec Time", "Route",
	"ECNMaker", "ECNTaker", "TAFFee", "NSCCFee", "CATFee", "Amount", "Type", "Commission",
}

func statementLine(cells map[int]string) string {
	values := make([]string, len(statementHeaders))
	for pos, v := range cells {
		values[pos] = v
	}
	return strings.Join(values, ",")
}

func writeStatement(t *testing.T, dir, name, fee string) string {
	t.Helper()
	content := strings.Join([]string{
		strings.Join(statementHeaders, ","),
		statementLine(map[int]string{4: "10/13 STOCK BORROW FEE GV", 13: "-" + fee}),
		statementLine(map[int]string{0: "10/12/2024", 1: "B", 2: "100", 3: "GV", 4: "BUY GV", 5: "5.00", 13: "-500.00", 14: "Margin"}),
	}, "\n")

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write statement: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--log-level", "error", "--reference-date", "2024-11-01"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", filepath.Join(tmpDir, "missing.csv"), true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath)
			if tt.expectError {
				if !errors.IsCategory(err, errors.CategoryFile) {
					t.Errorf("expected file error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCloseOutput(t *testing.T) {
	earlier := errors.UnsupportedFormat("txt")

	tests := []struct {
		name     string
		closeErr error
		prior    error
		category errors.ErrorCategory
	}{
		{"clean close", nil, nil, ""},
		{"close failure surfaces", os.ErrClosed, nil, errors.CategoryFile},
		{"earlier error kept", os.ErrClosed, earlier, errors.CategoryFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prior
			closeOutput(func() error { return tt.closeErr }, "report.json", &err)

			if tt.category == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.IsCategory(err, tt.category) {
				t.Errorf("Expected %s error, got %v", tt.category, err)
			}
		})
	}
}

func TestAnalyzeCommand(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "statement_2024-10.csv", "15.00")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "console",
			args: []string{"analyze", path},
			want: []string{"Period:    2024-10", "=== SUMMARY ===", "Most Expensive Symbol:  GV (15.00)"},
		},
		{
			name: "json",
			args: []string{"analyze", path, "--format", "json"},
			want: []string{`"period": "2024-10"`, `"symbol": "GV"`, `"totalOvernightFees": 15.00`},
		},
		{
			name: "filtered out",
			args: []string{"analyze", path, "--format", "json", "--tickers", "AMD"},
			want: []string{`"filtered"`, `"positions": []`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q\n%s", want, out)
				}
			}
		})
	}
}

func TestAnalyzeOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeStatement(t, dir, "statement_2024-10.csv", "15.00")
	output := filepath.Join(dir, "positions.csv")

	if _, err := runCLI(t, "analyze", path, "--format", "csv", "--output", output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Symbol,Date,") || !strings.HasPrefix(lines[1], "GV,2024-10-12,") {
		t.Errorf("unexpected CSV output:\n%s", data)
	}
}

func TestAnalyzeCommandErrors(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notes, []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	valid := writeStatement(t, dir, "statement_2024-10.csv", "15.00")

	tests := []struct {
		name     string
		args     []string
		category errors.ErrorCategory
	}{
		{"missing file", []string{"analyze", filepath.Join(dir, "missing.csv")}, errors.CategoryFile},
		{"unsupported type", []string{"analyze", notes}, errors.CategoryFormat},
		{"bad format", []string{"analyze", valid, "--format", "xml"}, errors.CategoryConfiguration},
		{"bad date", []string{"analyze", valid, "--start", "soon"}, errors.CategoryConfiguration},
		{"missing output dir", []string{"analyze", valid, "--output", filepath.Join(dir, "nope", "out.txt")}, errors.CategoryFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if !errors.IsCategory(err, tt.category) {
				t.Errorf("expected %s error, got %v", tt.category, err)
			}
		})
	}
}

func TestAnalyzeContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	valid := writeStatement(t, dir, "statement_2024-10.csv", "15.00")

	out, err := runCLI(t, "analyze", filepath.Join(dir, "missing.csv"), valid)
	if !errors.IsCategory(err, errors.CategoryFile) {
		t.Errorf("expected the first failure to be returned, got %v", err)
	}
	if !strings.Contains(out, "=== SUMMARY ===") {
		t.Error("expected the valid statement to be reported")
	}
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	september := writeStatement(t, dir, "statement_2024-09.csv", "10.00")
	october := writeStatement(t, dir, "statement_2024-10.csv", "15.00")

	out, err := runCLI(t, "compare", october, september)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"=== HISTORICAL COMPARISON ===", "Statements: 2", "Fees up 50.0% vs previous period"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	if strings.Index(out, "2024-09") > strings.Index(out, "2024-10") {
		t.Error("expected periods in chronological order")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeStatement(t, dir, "statement_2024-10.csv", "15.00")
	cfg := filepath.Join(dir, "feerecon.yaml")
	if err := os.WriteFile(cfg, []byte("report:\n  format: yaml\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	out, err := runCLI(t, "--config", cfg, "analyze", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "statement:\n") {
		t.Errorf("expected YAML output from config file\n%s", out)
	}

	if _, err := runCLI(t, "--config", filepath.Join(dir, "missing.yaml"), "analyze", path); !errors.IsCategory(err, errors.CategoryConfiguration) {
		t.Errorf("expected configuration error for missing config file, got %v", err)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "statement_2024-10.csv", "15.00")
	t.Setenv("FEERECON_REPORT_FORMAT", "json")

	out, err := runCLI(t, "analyze", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected JSON output from the environment\n%s", out)
	}
}
