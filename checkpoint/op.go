package checkpoint

import "fmt"

// Operation selects what a checkpoint request asks the authority to do.
type Operation uint16

const (
	QueryAble Operation = iota
	Disable
	Enable
	Create
	Vacate
	Restart
	QueryError
)

func (op Operation) String() string {
	switch op {
	case QueryAble:
		return "able"
	case Disable:
		return "disable"
	case Enable:
		return "enable"
	case Create:
		return "create"
	case Vacate:
		return "vacate"
	case Restart:
		return "restart"
	case QueryError:
		return "error"
	}
	return fmt.Sprintf("op(%d)", uint16(op))
}

// carriesData reports whether the operation's auxiliary data field is meaningful.
func (op Operation) carriesData() bool {
	return op == Create || op == Vacate
}
