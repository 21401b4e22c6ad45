package workflow

// GatePredicate decides whether the supplied action data satisfies a named
// gate. Predicates come from the caller's domain; the engine only knows
// how to consult them.
type GatePredicate func(actionData map[string]any) bool

// GateTable maps gate tokens to their predicates.
type GateTable map[string]GatePredicate

// DefaultGate accepts action data that confirms the token with a true
// boolean or any non-empty value.
func DefaultGate(token string) GatePredicate {
	return func(actionData map[string]any) bool {
		value, ok := actionData[token]
		if !ok {
			return false
		}

		switch v := value.(type) {
		case bool:
			return v
		case string:
			return v != ""
		case nil:
			return false
		default:
			return true
		}
	}
}
