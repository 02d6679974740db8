package app

// Operation statuses stored in the catalog.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks a CLI command that changes wallets or backups.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the catalog).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the catalog.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is not nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = StatusError
	}
	return err
}
