// Package diagnose runs repository health checks before a workflow
// starts. Problems block the workflow; warnings are reported and the
// workflow continues.
package diagnose

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/teamflowhq/teamflow/internal/config"
	"github.com/teamflowhq/teamflow/internal/git"
	"github.com/teamflowhq/teamflow/internal/logging"
)

// Level separates blocking problems from advisories.
type Level string

const (
	Problem Level = "problem"
	Warning Level = "warning"
)

// Thresholds for the advisory checks.
const (
	untrackedLimit   = 10
	uncommittedLimit = 20
	largeFileBytes   = 100 << 20
)

// Finding is one health-check result.
type Finding struct {
	Code    string
	Level   Level
	Message string
	Fix     string
}

// Report is the outcome of one diagnosis run.
type Report struct {
	CheckedAt time.Time
	Findings  []Finding
}

// Healthy reports whether no blocking problem was found.
func (r *Report) Healthy() bool {
	for _, f := range r.Findings {
		if f.Level == Problem {
			return false
		}
	}
	return true
}

// Problems returns only the blocking findings.
func (r *Report) Problems() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Level == Problem {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns only the advisory findings.
func (r *Report) Warnings() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Level == Warning {
			out = append(out, f)
		}
	}
	return out
}

// Doctor runs the checks against one working tree.
type Doctor struct {
	git *git.Git
	cfg *config.Config
	log *logging.Logger
	now func() time.Time

	// skipRemote disables the network probe, used in offline mode.
	skipRemote bool
}

// NewDoctor builds a Doctor for the configured working tree.
func NewDoctor(cfg *config.Config, g *git.Git, log *logging.Logger) *Doctor {
	if log == nil {
		log = logging.Discard()
	}
	return &Doctor{git: g, cfg: cfg, log: log, now: time.Now}
}

// SkipRemoteChecks disables checks that need the network.
func (d *Doctor) SkipRemoteChecks() { d.skipRemote = true }

// Run executes every check and returns the combined report.
func (d *Doctor) Run(ctx context.Context) *Report {
	report := &Report{CheckedAt: d.now()}

	if !d.git.IsRepository(ctx) {
		report.add(Problem, "not_git_repository",
			"gitリポジトリではありません",
			"git リポジトリ内で実行するか、git init で初期化してください")
		return report
	}

	st, err := d.git.Status(ctx)
	if err != nil {
		report.add(Problem, "status_unreadable",
			"git status を取得できません: "+err.Error(),
			"リポジトリの状態を確認してください")
		return report
	}

	d.checkTreeState(report, st)
	d.checkIdentity(ctx, report)
	d.checkWritable(report)
	d.checkLargeFiles(report)
	if !d.skipRemote {
		d.checkRemote(ctx, report)
	}
	d.checkWorkHabits(report, st)

	d.log.Info("diagnosis finished",
		"problems", len(report.Problems()), "warnings", len(report.Warnings()))
	return report
}

func (d *Doctor) checkTreeState(report *Report, st *git.Status) {
	if len(st.Conflicted) > 0 {
		report.add(Problem, "merge_conflict",
			fmt.Sprintf("未解決の競合が %d 件あります", len(st.Conflicted)),
			"競合を解決して git add してください")
	}
	if st.Detached {
		report.add(Problem, "detached_head",
			"HEAD がブランチから切り離されています",
			"git checkout <ブランチ名> で復帰してください")
	}
	if len(st.Untracked) > untrackedLimit {
		report.add(Problem, "too_many_untracked",
			fmt.Sprintf("未追跡ファイルが %d 件あります (上限 %d)", len(st.Untracked), untrackedLimit),
			".gitignore を整備するか、不要ファイルを削除してください")
	}
}

func (d *Doctor) checkIdentity(ctx context.Context, report *Report) {
	if d.git.ConfigValue(ctx, "user.name") == "" || d.git.ConfigValue(ctx, "user.email") == "" {
		report.add(Problem, "missing_identity",
			"git の user.name / user.email が未設定です",
			"git config user.name と user.email を設定してください")
	}
}

// checkWritable probes the working tree with a throwaway file.
func (d *Doctor) checkWritable(report *Report) {
	probe, err := os.CreateTemp(d.cfg.WorkDir, ".teamflow-probe-*")
	if err != nil {
		report.add(Problem, "workdir_unwritable",
			"作業ディレクトリに書き込めません",
			"ディレクトリの権限を確認してください")
		return
	}
	probe.Close()
	os.Remove(probe.Name())
}

func (d *Doctor) checkLargeFiles(report *Report) {
	var offenders []string
	filepath.WalkDir(d.cfg.WorkDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			name := entry.Name()
			if name == ".git" || name == config.AppDir || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := entry.Info()
		if err == nil && info.Size() > largeFileBytes {
			rel, _ := filepath.Rel(d.cfg.WorkDir, path)
			offenders = append(offenders, rel)
		}
		return nil
	})
	if len(offenders) > 0 {
		report.add(Problem, "large_files",
			fmt.Sprintf("100MiB を超えるファイルがあります: %s", offenders[0]),
			"Git LFS を使うか、対象を .gitignore に追加してください")
	}
}

func (d *Doctor) checkRemote(ctx context.Context, report *Report) {
	url, err := d.git.RemoteURL(ctx)
	if err != nil || url == "" {
		report.add(Problem, "no_remote",
			"remote origin が設定されていません",
			"git remote add origin <URL> を実行してください")
		return
	}
	if !d.git.RemoteBranchExists(ctx, d.cfg.DefaultBranch) {
		report.add(Problem, "remote_unreachable",
			"remote origin に到達できないか、既定ブランチがありません",
			"ネットワークと remote URL、既定ブランチ名を確認してください")
	}
}

// checkWorkHabits emits the non-blocking advisories.
func (d *Doctor) checkWorkHabits(report *Report, st *git.Status) {
	if st.CurrentBranch == d.cfg.DefaultBranch {
		report.add(Warning, "on_default_branch",
			d.cfg.DefaultBranch+" ブランチ上で作業しています",
			"teamflow start で作業ブランチを作成してください")
	}
	if n := st.ChangeCount(); n > uncommittedLimit {
		report.add(Warning, "many_uncommitted",
			fmt.Sprintf("未コミットの変更が %d 件あります", n),
			"こまめにコミットすることを推奨します")
	}
	if st.Ahead > 0 {
		report.add(Warning, "unpushed_commits",
			fmt.Sprintf("未プッシュのコミットが %d 件あります", st.Ahead),
			"teamflow continue でプッシュできます")
	}
}

func (r *Report) add(level Level, code, message, fix string) {
	r.Findings = append(r.Findings, Finding{Code: code, Level: level, Message: message, Fix: fix})
}
