package reporter

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/swzo/brassworks-updater/internal/host/loading"
)

const (
	meterTotalField   = "total"
	meterCurrentField = "current"
	meterLockField    = "mu"
)

var (
	errNotStructPointer = errors.New("target is not a pointer to a struct")
	errNoSuchField      = errors.New("field not found")
	errUnsupportedKind  = errors.New("field is not an integer")
	errOverflow         = errors.New("value overflows field")
	errAccessPanicked   = errors.New("field access panicked")
)

// FieldSink is a ProgressSink writing named integer fields of a struct,
// exported or not. While writing it holds the struct's sync.Locker field, if
// it has one, so readers guarded by the same lock see whole updates.
type FieldSink struct {
	target       any
	totalField   string
	currentField string
	lockField    string
}

// NewFieldSink creates a sink for target, which must be a pointer to a struct.
func NewFieldSink(target any, totalField, currentField string) *FieldSink {
	return &FieldSink{
		target:       target,
		totalField:   totalField,
		currentField: currentField,
		lockField:    meterLockField,
	}
}

// ForMeter adapts the host loading meter.
func ForMeter(m *loading.Meter) *FieldSink {
	return NewFieldSink(m, meterTotalField, meterCurrentField)
}

// Total implements ProgressSink.
func (s *FieldSink) Total() (total uint, err error) {
	err = s.with(s.totalField, func(field reflect.Value) error {
		switch {
		case field.CanInt():
			total = uint(max(field.Int(), 0))
		case field.CanUint():
			total = uint(field.Uint())
		default:
			return fmt.Errorf("%s: %w", s.totalField, errUnsupportedKind)
		}

		return nil
	})

	return total, err
}

// SetTotal implements ProgressSink.
func (s *FieldSink) SetTotal(n uint) error {
	return s.with(s.totalField, func(field reflect.Value) error {
		return setCount(field, n)
	})
}

// SetCurrent implements ProgressSink.
func (s *FieldSink) SetCurrent(n uint) error {
	return s.with(s.currentField, func(field reflect.Value) error {
		return setCount(field, n)
	})
}

// with resolves name on the target and runs fn under the target's lock.
func (s *FieldSink) with(name string, fn func(reflect.Value) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errAccessPanicked, r)
		}
	}()

	value := reflect.ValueOf(s.target)
	if value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Struct {
		return errNotStructPointer
	}

	value = value.Elem()

	field := value.FieldByName(name)
	if !field.IsValid() {
		return fmt.Errorf("%s: %w", name, errNoSuchField)
	}

	if locker := lockerOf(value, s.lockField); locker != nil {
		locker.Lock()
		defer locker.Unlock()
	}

	return fn(writable(field))
}

// writable returns an addressable, settable view of an unexported field.
func writable(field reflect.Value) reflect.Value {
	if field.CanSet() {
		return field
	}

	//nolint:gosec // Host meter fields are unexported.
	return reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
}

func lockerOf(value reflect.Value, name string) sync.Locker {
	if name == "" {
		return nil
	}

	field := value.FieldByName(name)
	if !field.IsValid() {
		return nil
	}

	locker, ok := writable(field).Addr().Interface().(sync.Locker)
	if !ok {
		return nil
	}

	return locker
}

func setCount(field reflect.Value, n uint) error {
	switch {
	case field.CanInt():
		if uint64(n) > math.MaxInt64 || field.OverflowInt(int64(n)) {
			return errOverflow
		}

		field.SetInt(int64(n))
	case field.CanUint():
		if field.OverflowUint(uint64(n)) {
			return errOverflow
		}

		field.SetUint(uint64(n))
	default:
		return errUnsupportedKind
	}

	return nil
}
