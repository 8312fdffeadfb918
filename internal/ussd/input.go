package ussd

import (
	"strconv"
	"strings"
)

const (
	Separator = "*"
	BackToken = "0"
)

// Input is the accumulated trail of menu choices for one dial, e.g. "2*1*3".
type Input struct {
	Raw   string
	Parts []string
}

// ParseInput splits text on the separator, dropping empty tokens.
func ParseInput(text string) Input {
	in := Input{Raw: text}
	for _, p := range strings.Split(text, Separator) {
		p = strings.TrimSpace(p)
		if p != "" {
			in.Parts = append(in.Parts, p)
		}
	}
	return in
}

func (in Input) Len() int { return len(in.Parts) }

func (in Input) First() string {
	if len(in.Parts) == 0 {
		return ""
	}
	return in.Parts[0]
}

func (in Input) Last() string {
	if len(in.Parts) == 0 {
		return ""
	}
	return in.Parts[len(in.Parts)-1]
}

// Is reports whether the trail is exactly the single token tok.
func (in Input) Is(tok string) bool {
	return len(in.Parts) == 1 && in.Parts[0] == tok
}

// IsReset reports an empty trail or a trailing back marker.
func (in Input) IsReset() bool {
	return strings.TrimSpace(in.Raw) == "" || in.Last() == BackToken
}

// LastInt parses the last token; ok is false when it is not a number.
func (in Input) LastInt() (int, bool) {
	n, err := strconv.Atoi(in.Last())
	return n, err == nil
}
