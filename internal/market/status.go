package market

import "fmt"

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPlaced, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
