package text

import (
	"strings"

	"golang.org/x/image/font"
)

// Wrap splits text on newlines, keeping blank lines, then packs the words
// of each paragraph greedily into lines no wider than maxWidth pixels. A
// word wider than maxWidth gets a line of its own. maxWidth <= 0 only
// splits on newlines.
func Wrap(text string, maxWidth int, face font.Face) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimRight(para, "\r")
		if maxWidth <= 0 {
			lines = append(lines, para)
			continue
		}

		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		currentLine := words[0]
		for _, word := range words[1:] {
			testLine := currentLine + " " + word
			if font.MeasureString(face, testLine).Ceil() > maxWidth {
				lines = append(lines, currentLine)
				currentLine = word
			} else {
				currentLine = testLine
			}
		}
		lines = append(lines, currentLine)
	}
	return lines
}
