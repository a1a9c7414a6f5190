package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrCardBound is returned when a card already belongs to another student.
var ErrCardBound = errors.New("rfid card already bound")

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// placeholder tracks positional arguments for dynamically built WHERE clauses.
type placeholder struct {
	args []interface{}
}

func (p *placeholder) next(value interface{}) int {
	p.args = append(p.args, value)
	return len(p.args)
}
