// SPDX-License-Identifier: MPL-2.0

package logging

import "github.com/charmbracelet/lipgloss"

// Palette shared by the status stream and the CLI.
const (
	ColorOutput  = lipgloss.Color("#22D3EE")
	ColorError   = lipgloss.Color("#EF4444")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorCommand = lipgloss.Color("#3B82F6")
	ColorModule  = lipgloss.Color("#D946EF")
	ColorWarning = lipgloss.Color("#F59E0B")
)

var (
	// OutputStyle renders bundle file names.
	OutputStyle = lipgloss.NewStyle().Foreground(ColorOutput)
	// ErrorStyle renders failures and missing files.
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorError)
	// SuccessStyle renders elapsed build times.
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	// MutedStyle renders per-bundle durations.
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	// CommandStyle renders hook command lines.
	CommandStyle = lipgloss.NewStyle().Foreground(ColorCommand)
	// ModuleStyle renders module names in messages.
	ModuleStyle = lipgloss.NewStyle().Foreground(ColorModule)
	// WarningStyle renders retries and skipped work.
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
)
