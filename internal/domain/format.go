package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFilename replaces characters that are illegal in file paths with '_'.
func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// FormatDuration renders seconds as m:ss. Negative input is treated as zero.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

var numberPrinter = message.NewPrinter(language.English)

// FormatViews renders a count with comma thousands separators.
func FormatViews(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}
