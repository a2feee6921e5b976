// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the Kodiak CLI.
package ux

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Kodiak color palette - warm amber and forest tones
var (
	ColorAmberBright  = lipgloss.Color("#F5B041") // Bright amber - highlights
	ColorAmberPrimary = lipgloss.Color("#E59E2E") // Primary amber - brand color
	ColorHoney        = lipgloss.Color("#D4881F") // Honey - interactive elements
	ColorBark         = lipgloss.Color("#8B5E2A") // Bark brown - borders, accents
	ColorForest       = lipgloss.Color("#3E5641") // Forest green - subtle accents
	ColorGranite      = lipgloss.Color("#4A5459") // Granite - muted text

	// Semantic colors (standard conventions)
	ColorSuccess = lipgloss.Color("#58D68D") // Green for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAmberBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAmberPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorGranite),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAmberBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBark).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

var (
	plainMode bool
	plainOnce sync.Once
	plainMu   sync.RWMutex
)

// Plain reports whether output should skip styling and animation: stdout is
// not a TTY (piped to a file or another tool), or KODIAK_PLAIN is set.
func Plain() bool {
	plainOnce.Do(func() {
		plainMu.Lock()
		defer plainMu.Unlock()
		if os.Getenv("KODIAK_PLAIN") != "" {
			plainMode = true
			return
		}
		fd := os.Stdout.Fd()
		plainMode = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	})
	plainMu.RLock()
	defer plainMu.RUnlock()
	return plainMode
}

// SetPlain overrides TTY detection. Used by the CLI's --plain flag and by
// tests.
func SetPlain(v bool) {
	plainOnce.Do(func() {})
	plainMu.Lock()
	plainMode = v
	plainMu.Unlock()
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	if Plain() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a styled title line.
func Title(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with a checkmark.
func Success(text string) {
	if Plain() {
		fmt.Printf("OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message.
func Warning(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message.
func Error(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message.
func Info(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Suppressed entirely in plain mode.
func Muted(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints titled content in a rounded box.
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// KeyValue prints an aligned key/value row, as used by stats output.
func KeyValue(key string, value any) {
	if Plain() {
		fmt.Printf("%s=%v\n", key, value)
		return
	}
	fmt.Printf("  %s %v\n", Styles.Muted.Render(fmt.Sprintf("%-22s", key)), value)
}
