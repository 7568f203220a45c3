package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/collabnotes/collabnotes.go/pkg/models"
	"github.com/collabnotes/collabnotes.go/pkg/tui/common"
)

// NoteTable lays notes out as a table, one row per note. me marks the notes
// the session owns.
func NoteTable(notes []models.Note, me models.UserID) string {
	if len(notes) == 0 {
		return common.EmptyStyle.Render("No notes.")
	}
	now := time.Now()
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		owner := "shared with me"
		if n.IsOwnedBy(me) {
			owner = "me"
		}
		visibility := string(n.Visibility)
		if n.HasPublicToken() {
			visibility += " (link)"
		}
		rows = append(rows, []string{
			n.ID.String(),
			common.Truncate(n.Title, 40),
			visibility,
			strings.Join(n.TagNames(), ", "),
			common.FormatTime(n.LastModified(), now),
			owner,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "VISIBILITY", "TAGS", "UPDATED", "OWNER").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return common.HeaderStyle
			}
			return common.CellStyle
		}).
		String()
}

// NoteHeader is the title and metadata block shown above a rendered note.
func NoteHeader(n models.Note) string {
	meta := []string{
		"#" + n.ID.String(),
		string(n.Visibility),
		"updated " + common.FormatTime(n.LastModified(), time.Now()),
	}
	lines := []string{common.TitleStyle.Render(n.Title), common.MetaStyle.Render(strings.Join(meta, " · "))}
	if len(n.Tags) > 0 {
		tags := make([]string, 0, len(n.Tags))
		for _, name := range n.TagNames() {
			tags = append(tags, common.TagStyle.Render("#"+name))
		}
		lines = append(lines, strings.Join(tags, " "))
	}
	if len(n.SharedWith) > 0 {
		lines = append(lines, common.MetaStyle.Render("shared with "+strings.Join(n.SharedWith, ", ")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
