package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the TUI.
var (
	userPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	userBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)

	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	answerBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)

	toolNameStyle   = lipgloss.NewStyle().Bold(true)
	toolResultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim gray
	toolErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	errorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("1"))

	warnBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("3"))
)

const treeCorner = "└ "
