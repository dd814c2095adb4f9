package git

import (
	"context"
	"fmt"
	"strings"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// mapError converts a raw git failure into a tagged domain error. The
// mapping inspects stderr text, which is the only contract the git CLI
// offers.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if flowerrors.TagOf(err) != flowerrors.TagUnknown {
		return err
	}

	msg := strings.ToLower(err.Error())

	switch {
	case context.DeadlineExceeded.Error() == msg || strings.Contains(msg, "deadline exceeded"):
		return flowerrors.Wrap(flowerrors.TagNetworkTimeout, fmt.Sprintf("git %s がタイムアウトしました", op), err)
	case strings.Contains(msg, "not a git repository"):
		return flowerrors.Wrap(flowerrors.TagNotGitRepository, "gitリポジトリではありません", err)
	case strings.Contains(msg, "conflict"):
		return flowerrors.Wrap(flowerrors.TagMergeConflict, fmt.Sprintf("git %s で競合が発生しました", op), err)
	case strings.Contains(msg, "permission denied"):
		return flowerrors.Wrap(flowerrors.TagPermission, fmt.Sprintf("git %s の権限がありません", op), err)
	case strings.Contains(msg, "could not read from remote"),
		strings.Contains(msg, "repository not found"),
		strings.Contains(msg, "does not appear to be a git repository"):
		return flowerrors.Wrap(flowerrors.TagRemoteNotFound, "リモートリポジトリが見つかりません", err)
	case strings.Contains(msg, "did not match any file"),
		strings.Contains(msg, "unknown revision"),
		strings.Contains(msg, "not found") && strings.Contains(msg, "branch"):
		return flowerrors.Wrap(flowerrors.TagBranchNotFound, "ブランチが見つかりません", err)
	case strings.Contains(msg, "nothing to commit"),
		strings.Contains(msg, "no changes added to commit"):
		return flowerrors.Wrap(flowerrors.TagNothingToCommit, "コミットする変更がありません", err)
	case strings.Contains(msg, "your local changes"),
		strings.Contains(msg, "uncommitted changes"),
		strings.Contains(msg, "would be overwritten"):
		return flowerrors.Wrap(flowerrors.TagUncommitted, "未コミットの変更があります", err)
	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "invalid credentials"),
		strings.Contains(msg, "could not read username"),
		strings.Contains(msg, "terminal prompts disabled"):
		return flowerrors.Wrap(flowerrors.TagAuthFailed, fmt.Sprintf("git %s の認証に失敗しました", op), err)
	case strings.Contains(msg, "could not resolve host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"):
		return flowerrors.Wrap(flowerrors.TagNetworkError, fmt.Sprintf("git %s でネットワークエラーが発生しました", op), err)
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return flowerrors.Wrap(flowerrors.TagNetworkTimeout, fmt.Sprintf("git %s がタイムアウトしました", op), err)
	}

	return flowerrors.Wrap(flowerrors.TagUnknownGit, fmt.Sprintf("git %s に失敗しました", op), err)
}

// mapPushError distinguishes the push failure modes callers branch on:
// timeout, authentication and rejection.
func mapPushError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return flowerrors.Wrap(flowerrors.TagNetworkTimeout, "git push がタイムアウトしました", err)
	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "permission denied (publickey)"),
		strings.Contains(msg, "could not read username"),
		strings.Contains(msg, "invalid credentials"):
		return flowerrors.Wrap(flowerrors.TagAuthFailed, "git push の認証に失敗しました", err)
	case strings.Contains(msg, "rejected"),
		strings.Contains(msg, "non-fast-forward"),
		strings.Contains(msg, "fetch first"):
		return flowerrors.Wrap(flowerrors.TagUncommitted, "push が拒否されました。先に pull してください", err).
			WithWhy("リモートに未取得のコミットがあります")
	}
	return mapError("push", err)
}
