package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/engine"
	"github.com/roach88/govsync/internal/ogmios"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeSetup, "config invalid", nil)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeSetup, resp.Error.Code)
	assert.Equal(t, "config invalid", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"slot": "52616248", "tx": "ab12"}
	err := formatter.Error(string(engine.ErrCodeInvariantViolation), "ingestion halted", details)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("rolled back to slot 20")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rolled back to slot 20")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error(CodeSetup, "config invalid", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_SETUP]")
	assert.Contains(t, buf.String(), "config invalid")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"slot": "52616248"}
	err := formatter.Error(CodeSetup, "config invalid", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_SETUP]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "govsync.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Opening govsync.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := Response{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestErrorBody_JSON(t *testing.T) {
	body := ErrorBody{
		Code:    CodeTestFailed,
		Message: "1 scenario(s) failed",
		Details: []string{"vote-retract"},
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	var decoded ErrorBody
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, CodeTestFailed, decoded.Code)
	assert.Equal(t, "1 scenario(s) failed", decoded.Message)
}

type renderedStatus struct{ lines []string }

func (r renderedStatus) RenderText(w io.Writer) error {
	for _, l := range r.lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(renderedStatus{lines: []string{"tip: 20", "blocks: 1"}}))
	assert.Equal(t, "tip: 20\nblocks: 1\n", buf.String())
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("resuming from %d points", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "resuming from 3 points\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, GetExitCode(nil))
	assert.Equal(t, ExitHalted, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitSetup, GetExitCode(NewExitError(ExitSetup, "bad config")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitHalted, "halted", errors.New("invariant")))
	assert.Equal(t, ExitHalted, GetExitCode(wrapped))
	assert.Equal(t, "outer: halted: invariant", wrapped.Error())
}

func haltedAtInvariant() error {
	ie := &engine.IngestError{
		Code:      engine.ErrCodeInvariantViolation,
		Message:   "tally output without governance thread",
		Slot:      52616248,
		BlockHash: "9f3a",
		TxID:      "ab12",
		Details:   map[string]string{"projector": "tally"},
	}
	return WrapExitError(ExitHalted, "ingestion halted", ie)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ingest_error", haltedAtInvariant(), "INVARIANT_VIOLATION"},
		{"store_failure", fmt.Errorf("apply: %w", &engine.IngestError{Code: engine.ErrCodeStoreFailure}), "STORE_FAILURE"},
		{"transport", WrapExitError(ExitHalted, "sync failed", &ogmios.TransportError{Op: "read", Err: io.EOF}), CodeTransport},
		{"scenarios_failed", scenariosFailed(2), CodeTestFailed},
		{"setup", NewExitError(ExitSetup, "database not found"), CodeSetup},
		{"plain", errors.New("boom"), CodeHalted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestOutputFormatter_ReportIngestError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Report(haltedAtInvariant()))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "INVARIANT_VIOLATION", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ingestion halted")
	assert.Equal(t, map[string]string{
		"slot":      "52616248",
		"block":     "9f3a",
		"tx":        "ab12",
		"projector": "tally",
	}, resp.Error.Details)
}

func TestOutputFormatter_ReportWithoutDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Report(NewExitError(ExitSetup, "invalid format")))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeSetup, resp.Error.Code)
	assert.Nil(t, resp.Error.Details)
}
