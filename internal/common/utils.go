package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// Confirm prompts the user for confirmation and returns true if the user confirms.
func Confirm(prompt string) bool {
	return ConfirmWithReader(os.Stdin, prompt)
}

// ConfirmWithReader prompts the user for confirmation using the provided reader and returns true if the user confirms.
func ConfirmWithReader(r io.Reader, prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(r)
	text, err := reader.ReadString('\n')
	if err != nil && text == "" {
		return false
	}
	text = strings.ToLower(strings.TrimSpace(text))
	return text == "y" || text == "yes"
}

// FormatNumber renders n with thousands separators, e.g. 1234567 -> "1,234,567".
func FormatNumber(n int) string {
	return numberPrinter.Sprintf("%d", n)
}

// FormatDuration renders d in a short human form: "45s", "1m 30s", "2h 5m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "N/A"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
