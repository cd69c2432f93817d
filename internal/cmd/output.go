package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("40"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func disableColor() {
	plain := lipgloss.NewStyle()
	titleStyle, successStyle, errorStyle = plain, plain, plain
	warningStyle, infoStyle, mutedStyle = plain, plain, plain
}

// PrintError prints a formatted error message
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+fmt.Sprintf(msg, args...)))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	fmt.Println(successStyle.Render("✓ " + fmt.Sprintf(msg, args...)))
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	fmt.Println(infoStyle.Render("› " + fmt.Sprintf(msg, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	fmt.Println(warningStyle.Render("! " + fmt.Sprintf(msg, args...)))
}

// PrintVerbose prints a message only in verbose mode
func PrintVerbose(msg string, args ...interface{}) {
	if verbose {
		fmt.Println(mutedStyle.Render("   " + fmt.Sprintf(msg, args...)))
	}
}

// printFailure reports the error that ended the command, tagged with the
// transport failure kind when there is one.
func printFailure(err error) {
	var missing *config.MissingEnvError
	switch kind := ssh.KindOf(err); {
	case kind != ssh.FailureNone && kind != ssh.FailureOther:
		PrintError("[%s] %v", kind, err)
	case errors.As(err, &missing):
		PrintError("%v", err)
		fmt.Fprintln(os.Stderr, mutedStyle.Render("  set them in the environment or in .env (see --env-file)"))
	default:
		PrintError("%v", err)
	}
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// stepPrinter renders runner progress on w.
type stepPrinter struct {
	w io.Writer
}

func (p stepPrinter) step(index, total int, step runbook.Step) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf("[%d/%d] %s", index+1, total, step.Title)))
	if step.Command != "" {
		PrintVerboseCommand(step.Command)
	}
}

func (p stepPrinter) result(res runbook.StepResult) {
	if !res.Step.Stream {
		if out := res.Result.Output(); strings.TrimSpace(out) != "" {
			fmt.Fprintln(p.w, indent(out, "  "))
		}
	}

	elapsed := res.Duration.Round(time.Millisecond)
	if res.Canceled {
		fmt.Fprintln(p.w, mutedStyle.Render(fmt.Sprintf("  stopped (%s)", elapsed)))
		return
	}
	switch res.Status {
	case runbook.StatusPassed:
		fmt.Fprintln(p.w, successStyle.Render(fmt.Sprintf("  ✓ done (%s)", elapsed)))
	case runbook.StatusFailed:
		if res.Step.Required {
			fmt.Fprintln(p.w, errorStyle.Render("  ✗ "+res.Reason))
		} else {
			fmt.Fprintln(p.w, warningStyle.Render("  ! "+res.Reason))
		}
	case runbook.StatusError:
		fmt.Fprintln(p.w, errorStyle.Render(fmt.Sprintf("  ✗ [%s] %s", res.Kind, res.Reason)))
	}
}

// printReport prints the run summary and any warnings.
func printReport(w io.Writer, report *runbook.Report) {
	if report == nil {
		return
	}
	fmt.Fprintln(w)
	warnings := report.Warnings()
	for _, r := range warnings {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("! %s: %s", r.Step.Title, r.Reason)))
	}
	switch {
	case report.Canceled():
		fmt.Fprintln(w, mutedStyle.Render(report.Name+": interrupted"))
	case !report.OK():
		fmt.Fprintln(w, errorStyle.Render(report.Summary()))
	case len(warnings) > 0:
		fmt.Fprintln(w, warningStyle.Render(report.Summary()))
	default:
		fmt.Fprintln(w, successStyle.Render(report.Summary()))
	}
}
