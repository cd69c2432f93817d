package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sweetstyle/opsrun/internal/runbook"
)

func TestStepPrinter_Canceled(t *testing.T) {
	var buf bytes.Buffer
	p := stepPrinter{w: &buf}

	p.result(runbook.StepResult{
		Step:     runbook.Step{Title: "pm2 logs", Command: "pm2 logs backend", Stream: true},
		Status:   runbook.StatusError,
		Err:      context.Canceled,
		Reason:   context.Canceled.Error(),
		Canceled: true,
	})
	out := buf.String()
	if strings.Contains(out, "✗") || strings.Contains(out, "context canceled") {
		t.Errorf("a canceled step must not print a failure, got %q", out)
	}
	if !strings.Contains(out, "stopped") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	printReport(&buf, &runbook.Report{
		Name:    "logs",
		Aborted: true,
		Results: []runbook.StepResult{{Status: runbook.StatusError, Canceled: true}},
	})
	if !strings.Contains(buf.String(), "logs: interrupted") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestStepPrinter_Error(t *testing.T) {
	var buf bytes.Buffer
	stepPrinter{w: &buf}.result(runbook.StepResult{
		Step:   runbook.Step{Title: "deploy", Command: "true"},
		Status: runbook.StatusError,
		Reason: "connection failed",
	})
	if !strings.Contains(buf.String(), "✗") || !strings.Contains(buf.String(), "connection failed") {
		t.Errorf("output = %q", buf.String())
	}
}
