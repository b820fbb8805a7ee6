package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(statusKindColor(kind), base, colorize)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) color.Attribute {
	switch kind {
	case statusOK:
		return color.FgGreen
	case statusWarn:
		return color.FgYellow
	case statusError:
		return color.FgRed
	default:
		return color.FgBlue
	}
}

// extractionKind maps an extraction status onto a display color.
func extractionKind(status string) statusKind {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete":
		return statusOK
	case "failed":
		return statusError
	case "crawling", "analyzing":
		return statusWarn
	default:
		return statusInfo
	}
}

func paint(attr color.Attribute, value string, colorize bool) string {
	c := color.New(attr)
	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(value)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{paint(color.FgBlue, line, colorize), paint(color.FgBlue, rule, colorize)}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}

func byteSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
