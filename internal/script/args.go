package script

// Keys under which the universal flags are exposed to scripts.
const (
	FieldPropagationStopped = "propagationStopped"
	FieldCancelled          = "cancelled"
)

// EventArgs is the payload handed to every handler of a single dispatch.
// The same value is shared by all handlers so flags set by one are seen by
// the next and by the host.
type EventArgs interface {
	// Base returns the universal control flags.
	Base() *BaseArgs

	// Fields returns the event-specific payload as plain values
	// (string, bool, int, int64, float64, []interface{}, map[string]interface{}).
	Fields() map[string]interface{}
}

// ArgsFactory builds the args for a dispatch. It is only called when at least
// one handler is bound to the event.
type ArgsFactory func() EventArgs

// BaseArgs carries the flags every event supports. Embed it in event payloads.
type BaseArgs struct {
	// PropagationStopped halts the remaining handlers and tells the host to
	// skip its default handling where it supports that.
	PropagationStopped bool

	// Cancelled asks the host to cancel the action, for events that allow it.
	Cancelled bool
}

// Base implements EventArgs.
func (b *BaseArgs) Base() *BaseArgs { return b }

// Fields implements EventArgs. Events without a payload expose nothing.
func (b *BaseArgs) Fields() map[string]interface{} { return map[string]interface{}{} }

// StopPropagation sets the propagation flag.
func (b *BaseArgs) StopPropagation() { b.PropagationStopped = true }

// Args is a map-backed EventArgs for events without a dedicated payload type.
type Args struct {
	BaseArgs
	Values map[string]interface{}
}

// NewArgs returns Args holding a copy of values.
func NewArgs(values map[string]interface{}) *Args {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Args{Values: copied}
}

// Fields implements EventArgs.
func (a *Args) Fields() map[string]interface{} {
	if a.Values == nil {
		return map[string]interface{}{}
	}
	return a.Values
}

// Stopped reports whether a dispatch result asks the host to stop. A nil
// result means no handler ran.
func Stopped(args EventArgs) bool {
	return args != nil && args.Base().PropagationStopped
}

// Cancelled reports whether a dispatch result asks the host to cancel.
func Cancelled(args EventArgs) bool {
	return args != nil && args.Base().Cancelled
}

// scriptPayload flattens args into the value handed to a script: the fields
// plus the two flags.
func scriptPayload(args EventArgs) map[string]interface{} {
	fields := args.Fields()
	payload := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	base := args.Base()
	payload[FieldPropagationStopped] = base.PropagationStopped
	payload[FieldCancelled] = base.Cancelled
	return payload
}

// applyFlags copies the flags a script may have changed back onto args.
// Values that are missing or not booleans leave the flag untouched.
func applyFlags(args EventArgs, values map[string]interface{}) {
	base := args.Base()
	if v, ok := values[FieldPropagationStopped].(bool); ok {
		base.PropagationStopped = v
	}
	if v, ok := values[FieldCancelled].(bool); ok {
		base.Cancelled = v
	}
}
