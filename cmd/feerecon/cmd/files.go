package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"

	"github.com/spf13/cobra"
)

// StatementParser parses one statement file.
type StatementParser interface {
	ParseStatement(ctx context.Context, fileName string, data []byte) (*models.Statement, error)
}

func validateFileExists(filePath string) error {
	if filePath == "" {
		return errors.FileError(errors.CodeFileNotFound, filePath, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	if err != nil {
		return errors.FileError("", filePath, err)
	}

	if info.IsDir() {
		return errors.FileError("", filePath, nil).
			WithSuggestion("pass a statement file, not a directory")
	}
	return nil
}

// parseFile reads path and parses it under its base name, which carries
// the extension and the period.
func parseFile(ctx context.Context, parser StatementParser, path string) (*models.Statement, error) {
	if err := validateFileExists(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError("", path, err)
	}

	return parser.ParseStatement(ctx, filepath.Base(path), data)
}

// openOutput returns the command's stdout when path is empty, otherwise a
// newly created file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, dir, err).
				WithSuggestion("create the output directory first")
		}
	}

	file, err := os.Create(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError("", path, err)
	}
	return file, file.Close, nil
}

// closeOutput closes an output file and reports the close error through
// errp unless an earlier error is already set.
func closeOutput(closeFn func() error, path string, errp *error) {
	if err := closeFn(); err != nil && *errp == nil {
		*errp = errors.FileError("", path, err)
	}
}
