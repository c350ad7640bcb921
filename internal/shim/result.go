package shim

// Fixed texts returned when the code slot is empty.
const (
	NoCodeSavedText    = "Error: No code has been saved yet. Please use analyze_stock or save_code first."
	NoCodeInMemoryText = "No code currently saved in memory."
)

// ErrorKind classifies the outcome of a shim operation.
type ErrorKind int

const (
	// KindNone marks a successful operation.
	KindNone ErrorKind = iota

	// KindGeneration means the code generator failed.
	KindGeneration

	// KindStorage means the code slot could not be written.
	KindStorage

	// KindExecution means the stored code failed to run: syntax error,
	// uncaught exception, timeout or a missing interpreter.
	KindExecution

	// KindPrecondition means the operation needs saved code and there is none.
	KindPrecondition
)

// String returns a short lower-case label, used for logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindGeneration:
		return "generation"
	case KindStorage:
		return "storage"
	case KindExecution:
		return "execution"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Result is the outcome of a shim operation. Exactly one of Text (on success
// or precondition failure) and Message (on other failures) is meaningful.
type Result struct {
	// Text is the success payload, or the fixed guidance text for
	// KindPrecondition.
	Text string

	// Kind classifies the outcome.
	Kind ErrorKind

	// Message describes the failure for KindGeneration, KindStorage and
	// KindExecution.
	Message string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Kind == KindNone }

// String renders the result as the text returned to tool callers.
func (r Result) String() string {
	switch r.Kind {
	case KindNone, KindPrecondition:
		return r.Text
	case KindExecution:
		return "Error executing code: " + r.Message
	default:
		return "Error: " + r.Message
	}
}

func ok(text string) Result {
	return Result{Text: text}
}

func failed(kind ErrorKind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}
