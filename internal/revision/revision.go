// Package revision identifies the source revision a run tested.
//
// It shells out to git through the same runner the pipeline uses. The
// result is informational only: it is shown in the report and never
// gates a run, so callers treat errors as "unknown revision".
package revision

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
)

// Detect returns the HEAD commit of the git work tree containing root and
// whether it has uncommitted changes to tracked files.
func Detect(ctx context.Context, r runner.Runner, root string) (model.Revision, error) {
	head, err := runGit(ctx, r, root, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return model.Revision{}, err
	}

	status, err := runGit(ctx, r, root, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return model.Revision{}, err
	}

	return model.Revision{
		Commit: strings.TrimSpace(head),
		Dirty:  hasChanges(status),
	}, nil
}

// runGit executes `git -C root args...` and returns stdout.
func runGit(ctx context.Context, r runner.Runner, root string, args ...string) (string, error) {
	fullArgs := append([]string{"git", "-C", root}, args...)

	out, err := r.Run(ctx, runner.Command{Args: fullArgs})
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// hasChanges reports whether `git status --porcelain` output lists any
// modified path.
func hasChanges(porcelain string) bool {
	for _, line := range strings.Split(porcelain, "\n") {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}
