// Package override applies seller-issued commands that force a claim
// transition outside the classifier path.
package override

import (
	"strconv"
	"strings"
)

// Action is the forced transition a seller asks for.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// Command is a parsed override. ProductID and Amount are nil when absent.
type Command struct {
	Action    Action
	ProductID *int64
	Amount    *int64
}

// ParseCommand reads "action [product-id] [amount]". The action may carry a
// leading slash and is matched case-insensitively. Arguments are positional
// and anything that is not a positive integer counts as absent. ok is false
// when text is not an override command at all.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}

	action := Action(strings.ToLower(strings.TrimPrefix(fields[0], "/")))
	if action != ActionConfirm && action != ActionCancel {
		return Command{}, false
	}

	cmd := Command{Action: action}
	if len(fields) > 1 {
		cmd.ProductID = positiveInt(fields[1])
	}
	if len(fields) > 2 {
		cmd.Amount = positiveInt(fields[2])
	}
	return cmd, true
}

func positiveInt(token string) *int64 {
	token = strings.TrimPrefix(token, "#")
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// String renders the command back in its canonical text form.
func (c Command) String() string {
	parts := []string{string(c.Action)}
	if c.ProductID != nil {
		parts = append(parts, strconv.FormatInt(*c.ProductID, 10))
	} else if c.Amount != nil {
		parts = append(parts, "-")
	}
	if c.Amount != nil {
		parts = append(parts, strconv.FormatInt(*c.Amount, 10))
	}
	return strings.Join(parts, " ")
}
