package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	coreerrors "github.com/davidahmann/modelgate/core/errors"
)

// errGateFailed signals a completed evaluation with at least one failing
// category. The report has already been written and printed.
var errGateFailed = stderrors.New("gate failed")

type errorOutput struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error"`
	ErrorCategory string `json:"error_category"`
	ErrorCode     string `json:"error_code"`
	Field         string `json:"field,omitempty"`
	Hint          string `json:"hint,omitempty"`
	Retryable     bool   `json:"retryable"`
}

func usageError(err error) error {
	return coreerrors.Wrap(err, coreerrors.CategoryInput, "usage_invalid", "run modelgate <command> --help", false)
}

func configError(err error, code, hint string) error {
	return coreerrors.Wrap(err, coreerrors.CategoryConfig, code, hint, false)
}

func ioError(err error, code string) error {
	return coreerrors.Wrap(err, coreerrors.CategoryIOFailure, code, "check file permissions and free space", false)
}

func verifyError(err error, code string) error {
	return coreerrors.Wrap(err, coreerrors.CategoryVerification, code, "re-run verify after checking artifact integrity", false)
}

// finish maps a command error to an exit code and reports it.
func (app *app) finish(err error) int {
	if err == nil {
		return exitOK
	}
	if stderrors.Is(err, errGateFailed) {
		return exitGateFailed
	}
	exitCode := exitCodeForError(err)
	output := errorOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		ErrorCode:     coreerrors.CodeOf(err),
		Field:         coreerrors.FieldOf(err),
		Hint:          coreerrors.HintOf(err),
		Retryable:     coreerrors.RetryableOf(err),
	}
	if output.ErrorCategory == "" {
		output.ErrorCategory = string(defaultErrorCategory(exitCode))
	}
	if output.ErrorCode == "" {
		output.ErrorCode = defaultErrorCode(exitCode)
	}
	if app.jsonOutput {
		encoded, marshalErr := json.Marshal(output)
		if marshalErr != nil {
			fmt.Fprintln(app.stdout, `{"ok":false,"error":"failed to encode output","error_code":"encode_failed","error_category":"internal_failure","retryable":false}`)
			return exitInternalFailure
		}
		fmt.Fprintln(app.stdout, string(encoded))
		return exitCode
	}
	fmt.Fprintf(app.stderr, "modelgate error: %s\n", output.Error)
	if output.Hint != "" {
		fmt.Fprintf(app.stderr, "hint: %s\n", output.Hint)
	}
	return exitCode
}

func exitCodeForError(err error) int {
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryConfig, coreerrors.CategoryInput:
		return exitInvalidInput
	case coreerrors.CategoryVerification:
		return exitVerifyFailed
	case coreerrors.CategoryIOFailure, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	// Unclassified errors come from cobra argument and command validation.
	return exitInvalidInput
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryInput
	case exitVerifyFailed:
		return coreerrors.CategoryVerification
	default:
		return coreerrors.CategoryInternalFailure
	}
}

func defaultErrorCode(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "invalid_input"
	case exitVerifyFailed:
		return "verification_failed"
	default:
		return "internal_failure"
	}
}

// writeJSON prints one JSON document on stdout.
func (app *app) writeJSON(value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "encode_failed", "", false)
	}
	fmt.Fprintln(app.stdout, string(encoded))
	return nil
}
