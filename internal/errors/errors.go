// Package errors provides tagged domain errors, classification and the
// process-wide error handler for teamflow.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Tag identifies a domain error. Adapters map platform failures to tags;
// everything above the adapters reasons about tags only.
type Tag string

// Critical tags. These are never recovered automatically.
const (
	TagRepoCorruption  Tag = "GIT_REPOSITORY_CORRUPTION"
	TagPermission      Tag = "PERMISSION_DENIED"
	TagDiskFull        Tag = "DISK_SPACE_FULL"
	TagOutOfMemory     Tag = "OUT_OF_MEMORY"
	TagAuthFailed      Tag = "AUTHENTICATION_FAILED"
	TagUnknownCritical Tag = "UNKNOWN_CRITICAL"
)

// Recoverable tags. These dispatch to the recovery manager.
const (
	TagNetworkTimeout     Tag = "NETWORK_TIMEOUT"
	TagConnectionRefused  Tag = "CONNECTION_REFUSED"
	TagMergeConflict      Tag = "MERGE_CONFLICT"
	TagRateLimit          Tag = "API_RATE_LIMIT"
	TagFileNotFound       Tag = "FILE_NOT_FOUND"
	TagConfigMissing      Tag = "CONFIGURATION_MISSING"
	TagFileBusy           Tag = "FILE_BUSY"
	TagUnknownRecoverable Tag = "UNKNOWN_RECOVERABLE"
)

// Warning tags. These are logged and never abort a phase.
const (
	TagOptionalFeature Tag = "OPTIONAL_FEATURE_UNAVAILABLE"
	TagConfigNonfatal  Tag = "CONFIGURATION_MISSING_NONFATAL"
	TagPerformance     Tag = "PERFORMANCE_WARNING"
	TagDeprecated      Tag = "DEPRECATED_FEATURE"
)

// TagUnknown covers anything outside the taxonomy.
const TagUnknown Tag = "UNKNOWN"

// Additional adapter tags surfaced by the git adapter and gateway. They
// classify through the same severity table.
const (
	TagNotGitRepository Tag = "NOT_GIT_REPOSITORY"
	TagRemoteNotFound   Tag = "REMOTE_NOT_FOUND"
	TagBranchNotFound   Tag = "BRANCH_NOT_FOUND"
	TagNothingToCommit  Tag = "NOTHING_TO_COMMIT"
	TagUncommitted      Tag = "UNCOMMITTED_CHANGES"
	TagNetworkError     Tag = "NETWORK_ERROR"
	TagUnknownGit       Tag = "UNKNOWN_GIT_ERROR"
	TagUnauthorized     Tag = "UNAUTHORIZED"
	TagForbidden        Tag = "FORBIDDEN"
	TagNotFound         Tag = "NOT_FOUND"
	TagValidation       Tag = "VALIDATION_ERROR"
	TagTimeout          Tag = "TIMEOUT"
	TagNotAvailable     Tag = "NOT_AVAILABLE"
	TagDirtyTree        Tag = "DIRTY_TREE"
	TagOnDefaultBranch  Tag = "ON_DEFAULT_BRANCH"
)

// FlowError is the structured error carried through teamflow. What states
// the symptom, Fix carries the 2-4 step remediation shown to the user.
type FlowError struct {
	Tag   Tag
	What  string
	Why   string
	Fix   string
	Cause error
}

func (e *FlowError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Tag))
	b.WriteString(": ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *FlowError) Unwrap() error { return e.Cause }

// Is matches FlowErrors by tag, enabling errors.Is(err, &FlowError{Tag: ...}).
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return e.Tag == t.Tag
}

// UserMessage renders the error for terminal display.
func (e *FlowError) UserMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Tag, e.What)
	if e.Why != "" {
		fmt.Fprintf(&b, "\n原因: %s", e.Why)
	}
	if e.Fix != "" {
		fmt.Fprintf(&b, "\n対処:\n%s", e.Fix)
	}
	return b.String()
}

// New constructs a FlowError for a tag with the symptom text.
func New(tag Tag, what string) *FlowError {
	return &FlowError{Tag: tag, What: what, Fix: remediation[tag]}
}

// Wrap constructs a FlowError wrapping a cause.
func Wrap(tag Tag, what string, cause error) *FlowError {
	return &FlowError{Tag: tag, What: what, Fix: remediation[tag], Cause: cause}
}

// WithWhy returns a copy with the Why field set.
func (e *FlowError) WithWhy(why string) *FlowError {
	dup := *e
	dup.Why = why
	return &dup
}

// WithFix returns a copy with the Fix field replaced.
func (e *FlowError) WithFix(fix string) *FlowError {
	dup := *e
	dup.Fix = fix
	return &dup
}

// TagOf extracts the tag of err, or TagUnknown.
func TagOf(err error) Tag {
	var fe *FlowError
	if As(err, &fe) {
		return fe.Tag
	}
	return TagUnknown
}

// As is a thin wrapper over the stdlib for callers that already import
// this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a thin wrapper over the stdlib.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// remediation holds the static human remediation per tag.
var remediation = map[Tag]string{
	TagRepoCorruption: "1. git fsck で破損を確認\n2. バックアップから復元 (help-flow → 復元)\n3. 必要なら git clone で取り直し",
	TagPermission:     "1. ファイル・ディレクトリの権限を確認 (ls -la)\n2. 所有者を確認し chmod/chown で修正\n3. 再実行",
	TagDiskFull:       "1. df -h で空き容量を確認\n2. 不要ファイルを削除\n3. 再実行",
	TagOutOfMemory:    "1. 他のプロセスを終了\n2. 対象ファイル数を減らして再実行",
	TagAuthFailed:     "1. GITHUB_TOKEN の有効期限を確認\n2. https://github.com/settings/tokens で再発行\n3. .env を更新して再実行",
	TagNetworkTimeout: "1. ネットワーク接続を確認\n2. 時間をおいて再実行",
	TagConnectionRefused: "1. ネットワーク接続を確認\n2. プロキシ設定を確認\n3. オフラインモードで続行可能",
	TagMergeConflict:  "1. git status で競合ファイルを確認\n2. 競合を手動で解決\n3. git add して続行 (rebase中なら git rebase --continue)",
	TagRateLimit:      "1. APIレート制限に達しました\n2. リセット時刻まで待機 (自動リトライされます)",
	TagFileNotFound:   "1. パスを確認\n2. --fix-config で既定ファイルを生成",
	TagConfigMissing:  "1. teamflow --setup で初期設定\n2. または --fix-config で .env を生成",
	TagFileBusy:       "1. 他のプロセスがファイルを使用中です\n2. エディタ等を閉じて再実行",
	TagUnauthorized:   "1. GITHUB_TOKEN を確認\n2. トークンのスコープ (repo) を確認\n3. 再発行して .env を更新",
	TagForbidden:      "1. リポジトリへの権限を確認\n2. 管理者にコラボレータ追加を依頼",
	TagNotFound:       "1. リポジトリ名・リソースを確認\n2. remote URL を確認 (git remote -v)",
	TagNotAvailable:   "1. GitHub連携が初期化できていません\n2. --check-config で設定を確認",
	TagNotGitRepository: "1. git リポジトリ内で実行してください\n2. 新規なら git init",
}

// Remediation returns the static remediation for a tag, empty when none is
// defined.
func Remediation(tag Tag) string { return remediation[tag] }
