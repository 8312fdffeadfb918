package ussd

import "fmt"

const (
	prefixContinue = "CON "
	prefixEnd      = "END "
)

// Reply is one menu response. Continue replies expect another round of
// input; the rest close the session on the channel side.
type Reply struct {
	Continue bool
	Text     string
}

// Con keeps the session open. text is sent as is.
func Con(text string) Reply { return Reply{Continue: true, Text: text} }

// End closes the session. text is sent as is.
func End(text string) Reply { return Reply{Continue: false, Text: text} }

func Conf(format string, args ...any) Reply { return Con(fmt.Sprintf(format, args...)) }

func Endf(format string, args ...any) Reply { return End(fmt.Sprintf(format, args...)) }

// String renders the reply with the channel's CON/END tag.
func (r Reply) String() string {
	if r.Continue {
		return prefixContinue + r.Text
	}
	return prefixEnd + r.Text
}
