package models

import "fmt"

// Severity classifies a validation failure.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the display form of a severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Failure is a single validation finding attached to a model object.
type Failure struct {
	Severity Severity
	Object   string
	Message  string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Object, f.Message)
}

// ValidationContext collects findings while a configuration is validated.
// Validation never aborts on the first finding; callers inspect the counts
// afterwards.
type ValidationContext struct {
	Failures []Failure
}

// Errorf records an ERROR finding for the given object.
func (vc *ValidationContext) Errorf(object, format string, args ...any) {
	vc.add(SeverityError, object, format, args...)
}

// Warnf records a WARNING finding for the given object.
func (vc *ValidationContext) Warnf(object, format string, args ...any) {
	vc.add(SeverityWarning, object, format, args...)
}

// Infof records an INFO finding for the given object.
func (vc *ValidationContext) Infof(object, format string, args ...any) {
	vc.add(SeverityInfo, object, format, args...)
}

func (vc *ValidationContext) add(sev Severity, object, format string, args ...any) {
	vc.Failures = append(vc.Failures, Failure{
		Severity: sev,
		Object:   object,
		Message:  fmt.Sprintf(format, args...),
	})
}

// ErrorCount returns the number of ERROR findings.
func (vc *ValidationContext) ErrorCount() int { return vc.count(SeverityError) }

// WarningCount returns the number of WARNING findings.
func (vc *ValidationContext) WarningCount() int { return vc.count(SeverityWarning) }

// InfoCount returns the number of INFO findings.
func (vc *ValidationContext) InfoCount() int { return vc.count(SeverityInfo) }

func (vc *ValidationContext) count(sev Severity) int {
	n := 0
	for _, f := range vc.Failures {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
