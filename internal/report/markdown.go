package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

func writeMarkdown(w io.Writer, doc []block) error {
	bw := bufio.NewWriter(w)
	blank := true
	for _, bl := range doc {
		switch bl.kind {
		case blockTitle:
			fmt.Fprintf(bw, "# %s\n", bl.text)
		case blockSubtitle:
			fmt.Fprintf(bw, "_%s_\n", bl.text)
		case blockHeading:
			// Document headings sit one level below the title.
			if !blank {
				bw.WriteString("\n")
			}
			fmt.Fprintf(bw, "%s %s\n\n", strings.Repeat("#", min(bl.level+1, 6)), bl.text)
			blank = true
			continue
		case blockBullet:
			fmt.Fprintf(bw, "- %s\n", bl.text)
		case blockBold:
			fmt.Fprintf(bw, "**%s**\n", bl.text)
		case blockBlank:
			if !blank {
				bw.WriteString("\n")
			}
			blank = true
			continue
		case blockTable:
			bw.WriteString("| 항목 | 값 |\n|---|---|\n")
			for _, row := range bl.rows {
				fmt.Fprintf(bw, "| %s | %s |\n", cellText(row[0]), cellText(row[1]))
			}
		default:
			fmt.Fprintf(bw, "%s\n", bl.text)
		}
		blank = false
	}
	return bw.Flush()
}

func cellText(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
