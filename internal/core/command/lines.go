package command

import (
	"strings"
)

// Lines splits text into lines and keeps only those that carry a command.
// Blank lines and lines whose first non-whitespace character is '#' are
// dropped. A trailing carriage return is treated as part of the line ending;
// all other content is returned untouched.
func Lines(text string) []string {
	if text == "" {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if IsSkippable(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IsSkippable reports whether a line is blank or a comment.
func IsSkippable(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// Parse classifies every surviving line of text, recording each line's
// position among the survivors in Index.
func Parse(text string) []Command {
	lines := Lines(text)
	cmds := make([]Command, 0, len(lines))
	for i, line := range lines {
		cmd := Classify(line)
		cmd.Index = i
		cmds = append(cmds, cmd)
	}
	return cmds
}
