package kernel

import (
	"github.com/ojas-mohbansi/my-own-os/fs"
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/ojas-mohbansi/my-own-os/mem"
	"github.com/ojas-mohbansi/my-own-os/sched"
	"github.com/pkg/errors"
)

// Severity buckets errors for reporting. Nothing below Fatal halts the
// system; exhaustion and policy denials always come back to the caller
// as recoverable conditions.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error to its severity bucket: resource exhaustion
// is a warning, policy and contract violations are errors, anything
// unrecognized is critical.
func Classify(err error) Severity {
	if err == nil {
		return SeverityInfo
	}

	switch errors.Cause(err) {
	case mem.ErrOutOfMemory, mem.ErrRegistryFull,
		sched.ErrTableFull,
		fs.ErrTableFull, fs.ErrNoSpace, fs.ErrTooLarge:
		return SeverityWarning

	case mem.ErrNoUser, mem.ErrPermissionDenied, mem.ErrNotFound,
		mem.ErrInvalidSize, mem.ErrInvalidAddress,
		fs.ErrNotFound, fs.ErrExists, fs.ErrNotEmpty,
		fs.ErrNotFile, fs.ErrNotDirectory, fs.ErrBadHandle,
		fs.ErrNameTooLong, sched.ErrNilEntry:
		return SeverityError

	default:
		return SeverityCritical
	}
}

// HandleError logs err at its classified severity and returns it
// unchanged so callers can keep propagating.
func (k *Kernel) HandleError(op string, err error) error {
	if err == nil {
		return nil
	}

	sev := Classify(err)

	switch sev {
	case SeverityWarning:
		log.L.Warn("operation-failed", "op", op, "error", err.Error())
	case SeverityError:
		log.L.Error("operation-failed", "op", op, "error", err.Error())
	default:
		log.L.Error("operation-failed", "op", op, "severity", sev.String(), "error", err.Error())
	}

	return err
}
