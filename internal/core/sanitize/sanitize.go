// Package sanitize provides an opt-in cleanup pass over exported appliance
// configuration before it is reordered or analyzed.
//
// Running configuration exports carry device-local details that do not port
// to another appliance: a "-devno <n>" qualifier on many objects and server
// objects the appliance created implicitly, named after their own address.
// The reorder engine never rewrites content, so this cleanup lives here as a
// separate pre-pass that callers choose to run.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
)

// Options selects which cleanup steps Apply runs.
type Options struct {
	StripDeviceNumbers bool
	DropAutoServers    bool
}

// DefaultOptions enables every step.
func DefaultOptions() Options {
	return Options{
		StripDeviceNumbers: true,
		DropAutoServers:    true,
	}
}

// Apply runs the enabled steps in order. Comment and blank lines pass through.
func Apply(text string, opts Options) string {
	if opts.StripDeviceNumbers {
		text = StripDeviceNumbers(text)
	}
	if opts.DropAutoServers {
		text = DropAutoServers(text)
	}
	return text
}

// devnoPattern matches a whole "-devno <n>" pair. The trailing group keeps the
// separator so "-devno 12abc" is left alone.
var devnoPattern = regexp.MustCompile(`[ \t]+-devno[ \t]+\d+([ \t]|$)`)

// StripDeviceNumbers removes "-devno <n>" option pairs from every command line.
// Text inside double-quoted arguments is never touched.
func StripDeviceNumbers(text string) string {
	return mapLines(text, func(line string) (string, bool) {
		if command.IsSkippable(line) {
			return line, true
		}
		return stripUnquoted(line), true
	})
}

func stripUnquoted(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	start, inQuote := 0, false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && inQuote:
			i++
		case line[i] == '"':
			if !inQuote {
				b.WriteString(stripDevno(line[start:i]))
				start = i
			} else {
				b.WriteString(line[start : i+1])
				start = i + 1
			}
			inQuote = !inQuote
		}
	}
	if inQuote {
		// Unterminated quote runs to the end of the line
		b.WriteString(line[start:])
	} else {
		b.WriteString(stripDevno(line[start:]))
	}
	return b.String()
}

// stripDevno repeats the replacement because adjacent pairs share the
// whitespace between them.
func stripDevno(segment string) string {
	for {
		stripped := devnoPattern.ReplaceAllString(segment, "$1")
		if stripped == segment {
			return segment
		}
		segment = stripped
	}
}

// DropAutoServers removes "add server <name> <addr>" lines whose name equals
// their address.
func DropAutoServers(text string) string {
	return mapLines(text, func(line string) (string, bool) {
		return line, !IsAutoServer(line)
	})
}

// IsAutoServer reports whether line creates a server named after its address.
func IsAutoServer(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return false
	}
	cmd := command.Classify(line)
	return cmd.IsCreate() && cmd.Object == command.ObjectServer && fields[2] == fields[3]
}

func mapLines(text string, fn func(string) (string, bool)) string {
	if text == "" {
		return ""
	}
	in := strings.Split(text, "\n")
	out := make([]string, 0, len(in))
	for _, line := range in {
		if mapped, keep := fn(line); keep {
			out = append(out, mapped)
		}
	}
	return strings.Join(out, "\n")
}
