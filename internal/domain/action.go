package domain

import "github.com/pkg/errors"

// Action is the direction of a trade, either observed on the stream or submitted by the bot.
type Action int

const (
	ActionBuy Action = iota
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringBuy  = "buy"
	actionStringSell = "sell"
)

// isValidActionString checks if the string is a valid action
func isValidActionString(s string) bool {
	switch s {
	case actionStringBuy, actionStringSell:
		return true
	}
	return false
}

// ParseAction converts venue notation ("buy"/"sell") to Action.
func ParseAction(s string) (Action, error) {
	if !isValidActionString(s) {
		return 0, errors.Errorf("unknown action %q", s)
	}
	if s == actionStringBuy {
		return ActionBuy, nil
	}

	return ActionSell, nil
}

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}
