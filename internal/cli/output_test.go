package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/pipeline"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"empty", eval.NewEmptyExpressionError(), ErrCodeEmptyExpression},
		{"syntax", eval.NewSyntaxError("unexpected token"), ErrCodeSyntax},
		{"unknown identifier", eval.NewUnknownIdentifierError("IX"), ErrCodeUnknownIdentifier},
		{"missing channel", &prepare.MissingChannelError{ID: "IA"}, ErrCodeMissingChannel},
		{"length mismatch", &session.LengthMismatchError{Expected: 3, Got: 2}, ErrCodeLengthMismatch},
		{"busy", &pipeline.BusyError{ChannelID: "c1"}, ErrCodeBusy},
		{"crash", &pipeline.EvaluationError{Message: "oops", Crash: true}, ErrCodeCrash},
		{"evaluation", &pipeline.EvaluationError{Message: "oops"}, ErrCodeEvaluation},
		{"cancelled", pipeline.ErrCancelled, ErrCodeCancelled},
		{"other", errors.New("plain"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ClassifyError(tt.err))
		})
	}
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]string{"k": "v"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeBusy, "channel busy", nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBusy, resp.Error.Code)
}

func TestOutputFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeUnknownIdentifier, "unknown identifier IX", nil))
	assert.Contains(t, buf.String(), "UNKNOWN_IDENTIFIER")
	assert.Contains(t, buf.String(), "unknown identifier IX")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errBuf bytes.Buffer

	quiet := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errBuf}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, errBuf.String())

	verbose := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errBuf, Verbose: true}
	verbose.VerboseLog("shown %d", 2)
	assert.Contains(t, errBuf.String(), "shown 2")
	assert.Empty(t, out.String())
}
