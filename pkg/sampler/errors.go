package sampler

import (
	"errors"
	"fmt"
)

var (
	ErrNilServer   = errors.New("sampler: nil managed object server")
	ErrSubscribe   = errors.New("sampler: subscribe to lifecycle notifications")
	ErrDiscovery   = errors.New("sampler: discovery")
	ErrListener    = errors.New("sampler: listener")
	ErrRule        = errors.New("sampler: rule evaluation")
	ErrCycle       = errors.New("sampler: cycle")
	ErrAttribute   = errors.New("sampler: attribute")
	ErrPanic       = errors.New("panic")
	ErrUnsupported = errors.New("unsupported attribute type")
)

// UnsupportedAttributeError 属性值类型未通过 TypePolicy
type UnsupportedAttributeError struct {
	Property string
	Value    any
}

func (e *UnsupportedAttributeError) Error() string {
	return fmt.Sprintf("%s: property=%s type=%T", ErrUnsupported, e.Property, e.Value)
}

func (e *UnsupportedAttributeError) Unwrap() error { return ErrUnsupported }

// recoverError 将 recover() 的结果转换为 error
func recoverError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
