package errors

import (
	"context"
	"net"
	"strings"
	"syscall"
)

// Severity buckets every error into one of four handling policies.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityRecoverable Severity = "recoverable"
	SeverityWarning     Severity = "warning"
	SeverityUnknown     Severity = "unknown"
)

// Classification is the result of classifying one error.
type Classification struct {
	Severity    Severity
	Tag         Tag
	Recoverable bool
}

// tagSeverity is the severity table for the taxonomy. Adapter tags not in
// the core taxonomy are folded into the policy that matches their handling.
var tagSeverity = map[Tag]Severity{
	// critical
	TagRepoCorruption:  SeverityCritical,
	TagPermission:      SeverityCritical,
	TagDiskFull:        SeverityCritical,
	TagOutOfMemory:     SeverityCritical,
	TagAuthFailed:      SeverityCritical,
	TagUnknownCritical: SeverityCritical,
	TagUnauthorized:    SeverityCritical,
	TagForbidden:       SeverityCritical,
	TagNotFound:        SeverityCritical,
	TagNotGitRepository: SeverityCritical,

	// recoverable
	TagNetworkTimeout:     SeverityRecoverable,
	TagConnectionRefused:  SeverityRecoverable,
	TagMergeConflict:      SeverityRecoverable,
	TagRateLimit:          SeverityRecoverable,
	TagFileNotFound:       SeverityRecoverable,
	TagConfigMissing:      SeverityRecoverable,
	TagFileBusy:           SeverityRecoverable,
	TagUnknownRecoverable: SeverityRecoverable,
	TagTimeout:            SeverityRecoverable,
	TagNetworkError:       SeverityRecoverable,

	// warning
	TagOptionalFeature: SeverityWarning,
	TagConfigNonfatal:  SeverityWarning,
	TagPerformance:     SeverityWarning,
	TagDeprecated:      SeverityWarning,
}

// criticalPatterns map message substrings to critical tags, checked before
// recoverable patterns so "permission denied while connecting" stays
// critical.
var criticalPatterns = []struct {
	substr string
	tag    Tag
}{
	{"not a git repository", TagNotGitRepository},
	{"repository corrupt", TagRepoCorruption},
	{"object file is empty", TagRepoCorruption},
	{"permission denied", TagPermission},
	{"no space left on device", TagDiskFull},
	{"out of memory", TagOutOfMemory},
	{"cannot allocate memory", TagOutOfMemory},
	{"authentication failed", TagAuthFailed},
	{"bad credentials", TagAuthFailed},
	{"invalid credentials", TagAuthFailed},
}

var recoverablePatterns = []struct {
	substr string
	tag    Tag
}{
	{"timed out", TagNetworkTimeout},
	{"timeout", TagNetworkTimeout},
	{"deadline exceeded", TagNetworkTimeout},
	{"connection refused", TagConnectionRefused},
	{"merge conflict", TagMergeConflict},
	{"conflict", TagMergeConflict},
	{"rate limit", TagRateLimit},
	{"no such file or directory", TagFileNotFound},
	{"file not found", TagFileNotFound},
	{"resource busy", TagFileBusy},
	{"file busy", TagFileBusy},
	{"text file busy", TagFileBusy},
}

var warningPatterns = []struct {
	substr string
	tag    Tag
}{
	{"optional feature", TagOptionalFeature},
	{"deprecated", TagDeprecated},
	{"configuration incomplete", TagConfigNonfatal},
}

// Classify derives the classification for err. Tagged errors classify by
// their tag; untagged errors match platform error codes first, then message
// patterns.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Severity: SeverityUnknown, Tag: TagUnknown}
	}

	if tag := TagOf(err); tag != TagUnknown {
		sev, ok := tagSeverity[tag]
		if !ok {
			sev = SeverityUnknown
		}
		return Classification{Severity: sev, Tag: tag, Recoverable: sev == SeverityRecoverable}
	}

	if tag, ok := classifyPlatform(err); ok {
		sev := tagSeverity[tag]
		return Classification{Severity: sev, Tag: tag, Recoverable: sev == SeverityRecoverable}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range criticalPatterns {
		if strings.Contains(msg, p.substr) {
			return Classification{Severity: SeverityCritical, Tag: p.tag}
		}
	}
	for _, p := range recoverablePatterns {
		if strings.Contains(msg, p.substr) {
			return Classification{Severity: SeverityRecoverable, Tag: p.tag, Recoverable: true}
		}
	}
	for _, p := range warningPatterns {
		if strings.Contains(msg, p.substr) {
			return Classification{Severity: SeverityWarning, Tag: p.tag}
		}
	}

	return Classification{Severity: SeverityUnknown, Tag: TagUnknown}
}

// classifyPlatform inspects wrapped syscall and net errors.
func classifyPlatform(err error) (Tag, bool) {
	var errno syscall.Errno
	if As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			return TagPermission, true
		case syscall.ENOSPC:
			return TagDiskFull, true
		case syscall.ENOMEM:
			return TagOutOfMemory, true
		case syscall.ECONNREFUSED:
			return TagConnectionRefused, true
		case syscall.ETIMEDOUT:
			return TagNetworkTimeout, true
		case syscall.ENOENT:
			return TagFileNotFound, true
		case syscall.EBUSY, syscall.ETXTBSY:
			return TagFileBusy, true
		}
	}

	var netErr net.Error
	if As(err, &netErr) && netErr.Timeout() {
		return TagNetworkTimeout, true
	}
	if Is(err, context.DeadlineExceeded) {
		return TagNetworkTimeout, true
	}

	return TagUnknown, false
}
