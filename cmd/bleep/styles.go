// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/bleepbuild/bleep/internal/logging"

	"github.com/charmbracelet/lipgloss"
)

// ColorPrimary is purple - used for titles and headers.
const ColorPrimary = lipgloss.Color("#7C3AED")

// CLI styles. The remaining colors come from the status stream palette so
// command output and build output look alike.
var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(logging.ColorMuted)

	// SuccessStyle is for values and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(logging.ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(logging.ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(logging.ColorWarning)

	// KeyStyle is for config keys and module names.
	KeyStyle = lipgloss.NewStyle().
			Foreground(logging.ColorCommand)
)
