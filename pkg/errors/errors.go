package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the stage that produced them
type ErrorCategory string

const (
	CategoryFormat        ErrorCategory = "format"
	CategoryDecode        ErrorCategory = "decode"
	CategoryNoData        ErrorCategory = "no_data"
	CategoryFile          ErrorCategory = "file"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNetwork       ErrorCategory = "network"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category
type ErrorCode string

const (
	// Format errors
	CodeUnsupportedType ErrorCode = "unsupported_type"

	// Decode errors
	CodeCSVDecode   ErrorCode = "csv_decode"
	CodeExcelDecode ErrorCode = "excel_decode"
	CodePDFDecode   ErrorCode = "pdf_decode"

	// No-data errors
	CodeNoPositions   ErrorCode = "no_positions"
	CodeNoPDFFeeLines ErrorCode = "no_pdf_fee_lines"

	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileTooLarge   ErrorCode = "file_too_large"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Network errors
	CodeRateLimited ErrorCode = "rate_limited"
	CodeBadRequest  ErrorCode = "bad_request"
	CodeNotFound    ErrorCode = "not_found"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// AppError is the base error type for all application errors
type AppError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error returns the message unchanged so callers can surface it verbatim.
func (e *AppError) Error() string {
	return e.Message
}

// Detail returns the message followed by the suggestion, if any.
func (e *AppError) Detail() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AppError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryFormat, CategoryDecode, CategoryNoData:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryInternal:
		return 5
	case CategoryNetwork:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError
func New(category ErrorCategory, code ErrorCode, message string) *AppError {
	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// UnsupportedFormat reports a file extension the decoders do not handle.
func UnsupportedFormat(fileType string) *AppError {
	return New(CategoryFormat, CodeUnsupportedType, fmt.Sprintf("Unsupported file type: %s", fileType)).
		WithSuggestion("upload a .csv, .xls, .xlsx or .pdf statement").
		WithContext("file_type", fileType)
}

// DecodeError wraps a failure of the underlying CSV, spreadsheet or PDF
// library. The message is prefixed with the stage label, e.g.
// "CSV parse error: ...".
func DecodeError(code ErrorCode, err error) *AppError {
	var stage, suggestion string

	switch code {
	case CodeCSVDecode:
		stage = "CSV"
		suggestion = "check that the file is comma separated with a header line"
	case CodeExcelDecode:
		stage = "Excel"
		suggestion = "re-export the statement from the broker or save it as .xlsx"
	case CodePDFDecode:
		stage = "PDF"
		suggestion = "export the statement as CSV or Excel for full fidelity"
	default:
		stage = "File"
		suggestion = "check the file format and data integrity"
	}

	cause := "Unknown error"
	if err != nil {
		cause = err.Error()
	}
	message := fmt.Sprintf("%s parse error: %s", stage, cause)

	var result *AppError
	if err != nil {
		result = Wrap(err, CategoryDecode, code, message)
	} else {
		result = New(CategoryDecode, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// NoDataError reports a structurally valid statement that produced no
// positions. The discovered columns and sample descriptions are embedded
// in the message so the unsupported template can be diagnosed.
func NoDataError(columns []string, sampleDescriptions []string) *AppError {
	columnList := "none found"
	if len(columns) > 0 {
		columnList = strings.Join(columns, ", ")
	}

	message := fmt.Sprintf(
		"No data found in the statement.\n\nColumns found: %s\n\nSample descriptions: %s",
		columnList, strings.Join(sampleDescriptions, ", "),
	)

	return New(CategoryNoData, CodeNoPositions, message).
		WithSuggestion("run with --verbose to trace how each row was classified").
		WithContext("columns", columns).
		WithContext("sample_descriptions", sampleDescriptions)
}

// NoPDFDataError reports a PDF whose text contained no recognizable fee lines.
func NoPDFDataError() *AppError {
	return New(CategoryNoData, CodeNoPDFFeeLines,
		"PDF parse error: No borrow fee data found in PDF. Please check the file format or contact support.")
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AppError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileTooLarge:
		message = fmt.Sprintf("file too large: %s", path)
		suggestion = "split the statement by month and upload each part"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *AppError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AppError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *AppError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *AppError {
	var message string
	var suggestion string

	switch code {
	case CodeCancelled:
		message = fmt.Sprintf("%s cancelled", operation)
		suggestion = "retry the request"
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	var result *AppError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// AsAppError extracts an AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries an AppError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Category == category
}

// WrapIfNeeded wraps an error if it's not already an AppError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	return Wrap(err, category, code, message)
}
