package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List message types and their priorities",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), kindsTable().Render())
		},
	}
}

func kindsTable() *table.Table {
	kinds := protocol.Kinds()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TYPE", "PRIORITY", "DESCRIPTION")
	for _, k := range kinds {
		t.Row(k.Label, strconv.Itoa(k.Priority), k.Description)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if col != 0 || row <= 0 || row > len(kinds) {
			return lipgloss.NewStyle().Padding(0, 1)
		}
		return lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color(kinds[row-1].Color))
	})
	return t
}
