package git

import (
	"context"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// PushOptions controls a push.
type PushOptions struct {
	Branch      string
	SetUpstream bool
	// Token authenticates the SDK path over HTTPS. Empty means rely on
	// the ambient credential helpers via the CLI fallback.
	Token string
}

// Push pushes the branch to origin. The go-git SDK path is tried first;
// any SDK failure falls back to the git CLI so credential helpers and
// exotic transports keep working. Errors distinguish timeout,
// authentication and rejection.
func (g *Git) Push(ctx context.Context, opts PushOptions) error {
	sdkErr := g.pushSDK(ctx, opts)
	if sdkErr == nil {
		if opts.SetUpstream {
			return g.setUpstream(ctx, opts.Branch)
		}
		return nil
	}

	if err := g.pushCLI(ctx, opts); err != nil {
		return mapPushError(err)
	}
	return nil
}

func (g *Git) pushSDK(ctx context.Context, opts PushOptions) error {
	repo, err := gogit.PlainOpen(g.dir)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	pushOpts := &gogit.PushOptions{RemoteName: "origin"}
	if opts.Branch != "" {
		ref := fmt.Sprintf("refs/heads/%s:refs/heads/%s", opts.Branch, opts.Branch)
		pushOpts.RefSpecs = []gitconfig.RefSpec{gitconfig.RefSpec(ref)}
	}
	if opts.Token != "" {
		pushOpts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: opts.Token}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := repo.PushContext(ctx, pushOpts); err != nil {
		if err == gogit.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	}
	return nil
}

func (g *Git) pushCLI(ctx context.Context, opts PushOptions) error {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	if opts.Branch != "" {
		args = append(args, "origin", opts.Branch)
	}
	_, err := g.run(ctx, args...)
	return err
}

func (g *Git) setUpstream(ctx context.Context, branch string) error {
	if branch == "" {
		return nil
	}
	if _, err := g.run(ctx, "branch", "--set-upstream-to=origin/"+branch, branch); err != nil {
		return mapError("set-upstream", err)
	}
	return nil
}
