package steps

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/tui/styles"
)

// NavigationHelp renders the key legend for steps driven by arrow-key
// selection.
func NavigationHelp() string {
	return renderHelp(
		"↑/↓", "navigate",
		"enter", "select",
		"esc", "back",
		"ctrl+c", "quit",
	)
}

// NavigationHelpWithInput renders the key legend for steps with text
// fields.
func NavigationHelpWithInput() string {
	return renderHelp(
		"enter", "continue",
		"tab", "next field",
		"esc", "back",
		"ctrl+c", "quit",
	)
}

// renderHelp takes alternating key/description pairs.
func renderHelp(pairs ...string) string {
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	sep := descStyle.Render(" • ")

	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+" "+descStyle.Render(pairs[i+1]))
	}
	return strings.Join(parts, sep)
}

// DetectAPIKey checks whether an API key exists in the environment.
func DetectAPIKey(envVar string) bool {
	return os.Getenv(envVar) != ""
}

// FormatKeyStatus returns a formatted string indicating API key status.
func FormatKeyStatus(detected bool) string {
	if detected {
		return styles.SuccessText.Render("✓ API Key: Detected")
	}
	return styles.MutedText.Render("○ API Key: Not found")
}

// FormatError returns a formatted error message, or "" for nil.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return styles.ErrorText.Render("Error: " + err.Error())
}

// FormatWarning returns a formatted warning message.
func FormatWarning(msg string) string {
	return styles.WarningText.Render(fmt.Sprintf("⚠ %s", msg))
}

// CheckPortInUse reports whether a TCP port on loopback currently has a
// listener.
func CheckPortInUse(port int) bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
