// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the devstack CLI.
//
// Styled output is automatically disabled when stdout is not a
// terminal or when NO_COLOR is set, so piped output stays parseable.
package ux

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Unison color palette
var (
	ColorIndigo  = lipgloss.Color("#5B6EE1") // Primary brand color
	ColorCyan    = lipgloss.Color("#3EC5E0") // Highlights
	ColorSlate   = lipgloss.Color("#5C6B73") // Muted text, borders
	ColorSuccess = lipgloss.Color("#3ED598")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorCyan),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorIndigo).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconSkipped Icon = "-"
	IconArrow   Icon = "→"
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
	case IconPending, IconSkipped:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

var (
	plainOnce sync.Once
	plainMode bool

	forceMu    sync.RWMutex
	forceSet   bool
	forceValue bool
)

// Plain reports whether styled output is disabled.
func Plain() bool {
	forceMu.RLock()
	if forceSet {
		v := forceValue
		forceMu.RUnlock()
		return v
	}
	forceMu.RUnlock()

	plainOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			plainMode = true
			return
		}
		fd := os.Stdout.Fd()
		plainMode = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	})
	return plainMode
}

// SetPlain overrides terminal detection. Used by the --json and
// --quiet flags and by tests.
func SetPlain(plain bool) {
	forceMu.Lock()
	forceSet = true
	forceValue = plain
	forceMu.Unlock()
}

// Title prints a styled section title.
func Title(text string) {
	if Plain() {
		fmt.Printf("== %s ==\n", text)
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

// Muted prints secondary text. Suppressed in plain mode.
func Muted(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints content in a rounded box with a title.
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// StatusLine prints a named item with its status icon and an
// optional detail in muted text.
func StatusLine(name string, status Icon, detail string) {
	if Plain() {
		fmt.Printf("%s\t%s\t%s\n", status, name, detail)
		return
	}
	if detail != "" {
		fmt.Printf("%s %s %s\n", status.Render(), name, Styles.Muted.Render("("+detail+")"))
	} else {
		fmt.Printf("%s %s\n", status.Render(), name)
	}
}

// BringupSummary prints the ready/failed/skipped totals after a
// stack start.
func BringupSummary(ready, failed, skipped int) {
	if Plain() {
		fmt.Printf("SUMMARY: ready=%d failed=%d skipped=%d\n", ready, failed, skipped)
		return
	}
	fmt.Printf("\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", ready)), Styles.Muted.Render("ready"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Warning.Render(fmt.Sprintf("%d", skipped)), Styles.Muted.Render("skipped"),
	)
}

// CheckSummary prints the pass/fail/warn totals after a validation
// run.
func CheckSummary(passed, failed, warned int) {
	if Plain() {
		fmt.Printf("SUMMARY: passed=%d failed=%d warned=%d\n", passed, failed, warned)
		return
	}
	fmt.Printf("\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", passed)), Styles.Muted.Render("passed"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Warning.Render(fmt.Sprintf("%d", warned)), Styles.Muted.Render("warned"),
	)
}
