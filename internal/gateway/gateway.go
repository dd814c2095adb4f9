// Package gateway is the single access point to the GitHub API. Every
// call is serialized through one dispatch queue, paced at a minimum
// interval, and gated on the remote quota window, so no other component
// ever needs to reason about rate limits.
package gateway

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/teamflowhq/teamflow/internal/config"
	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
	"github.com/teamflowhq/teamflow/internal/logging"
	"github.com/teamflowhq/teamflow/internal/validate"
)

// minInterval is the floor between two consecutive API dispatches.
const minInterval = 100 * time.Millisecond

// remotePattern extracts owner and repository from HTTPS and SSH remote
// URLs.
var remotePattern = regexp.MustCompile(`github\.com[:/]([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// Gateway mediates all GitHub API traffic for one repository.
type Gateway struct {
	client *github.Client
	owner  string
	repo   string
	login  string

	limiter *rate.Limiter
	tracker *rateLimitTracker
	jobs    chan *apiJob
	closeMu sync.Once

	mu          sync.Mutex
	offline     bool
	unavailable *flowerrors.FlowError

	log   *logging.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds the gateway and runs the initialization sequence: token
// check, authentication, remote parsing, repository probe. A failed
// sequence does not return an error; it returns a gateway in the
// unavailable state whose operations fail fast, so the rest of the tool
// keeps working offline.
func New(ctx context.Context, cfg *config.Config, remoteURL string, log *logging.Logger) *Gateway {
	g := newBare(log)

	if _, err := os.Stat(cfg.OfflineFile()); err == nil {
		g.offline = true
		g.log.Info("offline mode active", "marker", cfg.OfflineFile())
	}

	g.initialize(ctx, cfg, remoteURL)
	go g.dispatch()
	return g
}

func newBare(log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.Discard()
	}
	return &Gateway{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		tracker: &rateLimitTracker{},
		jobs:    make(chan *apiJob, 64),
		log:     log,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (g *Gateway) initialize(ctx context.Context, cfg *config.Config, remoteURL string) {
	if res := validate.Token(cfg.GitHubToken); !res.Valid {
		g.unavailable = flowerrors.New(flowerrors.TagNotAvailable, "GitHub連携を初期化できません").
			WithWhy(res.Error).
			WithFix("GITHUB_TOKEN を .env または環境変数に設定してください")
		return
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	g.client = github.NewClient(oauth2.NewClient(ctx, src))

	owner, repo, err := ParseRemote(remoteURL)
	if err != nil {
		g.unavailable = flowerrors.Wrap(flowerrors.TagNotAvailable, "リポジトリを特定できません", err).
			WithFix("git remote -v で origin が github.com を指しているか確認してください")
		return
	}
	g.owner, g.repo = owner, repo

	if g.offline {
		// Skip the network probes; operations still fail fast but the
		// repository identity is known for rendering.
		return
	}

	user, resp, err := g.client.Users.Get(ctx, "")
	if resp != nil {
		g.tracker.update(resp.Response)
	}
	if err != nil {
		g.unavailable = flowerrors.Wrap(flowerrors.TagNotAvailable, "GitHub認証に失敗しました", g.mapError("authenticate", err, resp)).
			WithFix("GITHUB_TOKEN の有効性とスコープ (repo) を確認してください")
		return
	}
	g.login = user.GetLogin()

	_, resp, err = g.client.Repositories.Get(ctx, g.owner, g.repo)
	if resp != nil {
		g.tracker.update(resp.Response)
	}
	if err != nil {
		g.unavailable = flowerrors.Wrap(flowerrors.TagNotAvailable,
			fmt.Sprintf("リポジトリ %s/%s にアクセスできません", g.owner, g.repo),
			g.mapError("probe repository", err, resp)).
			WithFix("リポジトリ名とトークンの権限を確認してください")
		return
	}

	g.log.Info("github gateway ready", "repository", g.owner+"/"+g.repo, "user", g.login)
}

// ParseRemote extracts owner and repository name from a git remote URL.
func ParseRemote(remoteURL string) (owner, repo string, err error) {
	m := remotePattern.FindStringSubmatch(remoteURL)
	if m == nil {
		return "", "", flowerrors.New(flowerrors.TagValidation,
			fmt.Sprintf("remote URL から owner/repo を抽出できません: %q", remoteURL))
	}
	return m[1], m[2], nil
}

// Available reports whether the gateway completed initialization and is
// not in offline mode.
func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unavailable == nil && !g.offline
}

// SetOffline flips offline mode on a live gateway. Enabling it makes
// every subsequent operation fail fast.
func (g *Gateway) SetOffline(offline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = offline
}

// Owner returns the repository owner resolved from the remote URL.
func (g *Gateway) Owner() string { return g.owner }

// Repo returns the repository name resolved from the remote URL.
func (g *Gateway) Repo() string { return g.repo }

// Login returns the authenticated user, empty when unavailable.
func (g *Gateway) Login() string { return g.login }

// RateLimit returns the last observed quota window.
func (g *Gateway) RateLimit() RateLimitState {
	return g.tracker.snapshot()
}

// Close stops the dispatch worker. Jobs already queued complete first.
func (g *Gateway) Close() {
	g.closeMu.Do(func() { close(g.jobs) })
}

// ready is checked before enqueueing any call.
func (g *Gateway) ready() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.offline {
		return flowerrors.New(flowerrors.TagNotAvailable, "オフラインモードのためGitHub APIを利用できません").
			WithFix("オフラインマーカーを削除するか、ネットワーク復旧後に再実行してください")
	}
	if g.unavailable != nil {
		return g.unavailable
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
