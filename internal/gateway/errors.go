package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// rateLimitedAt reports whether err is a quota rejection and, when the
// response said so, when the window resets.
func rateLimitedAt(err error) (time.Time, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return rle.Rate.Reset.Time, true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		reset := time.Time{}
		if abuse.RetryAfter != nil {
			reset = time.Now().Add(*abuse.RetryAfter)
		}
		return reset, true
	}
	return time.Time{}, false
}

// mapError converts a transport or API failure into a tagged domain
// error with user-facing guidance.
func (g *Gateway) mapError(op string, err error, resp *github.Response) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return flowerrors.Wrap(flowerrors.TagNetworkTimeout, op+" がタイムアウトしました", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return flowerrors.Wrap(flowerrors.TagNetworkTimeout, op+" がタイムアウトしました", err)
	}
	if _, ok := rateLimitedAt(err); ok {
		return flowerrors.Wrap(flowerrors.TagRateLimit, "APIレート制限に達しました", err)
	}

	status := 0
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	} else if resp != nil {
		status = resp.StatusCode
	}

	switch status {
	case 401:
		return flowerrors.Wrap(flowerrors.TagUnauthorized, "GitHub認証に失敗しました", err).
			WithWhy("トークンが無効か期限切れです")
	case 403:
		return flowerrors.Wrap(flowerrors.TagForbidden, op+" の権限がありません", err).
			WithWhy("トークンのスコープまたはリポジトリ権限が不足しています")
	case 404:
		return flowerrors.Wrap(flowerrors.TagNotFound, op+" の対象が見つかりません", err)
	case 422:
		return mapValidationError(op, err, ghErr)
	}

	if strings.Contains(err.Error(), "connection refused") {
		return flowerrors.Wrap(flowerrors.TagConnectionRefused, "GitHubに接続できません", err)
	}
	return flowerrors.Wrap(flowerrors.TagNetworkError, op+" に失敗しました", err)
}

// mapValidationError renders the two 422 cases users actually hit during
// PR creation with specific guidance.
func mapValidationError(op string, err error, ghErr *github.ErrorResponse) error {
	msg := err.Error()
	if ghErr != nil {
		for _, e := range ghErr.Errors {
			if e.Message != "" {
				msg = e.Message
				break
			}
		}
	}
	fe := flowerrors.Wrap(flowerrors.TagValidation, op+" を受け付けられません", err).WithWhy(msg)
	switch {
	case strings.Contains(msg, "No commits between"):
		return fe.WithFix("ベースブランチとの差分がありません。コミットしてから再実行してください")
	case strings.Contains(msg, "pull request already exists"):
		return fe.WithFix("同じブランチのPull Requestが既に存在します")
	}
	return fe
}

// requireNumber guards operations addressed by issue or PR number.
func requireNumber(kind string, number int) error {
	if number <= 0 {
		return flowerrors.New(flowerrors.TagValidation,
			fmt.Sprintf("%s番号が不正です: %d", kind, number))
	}
	return nil
}
