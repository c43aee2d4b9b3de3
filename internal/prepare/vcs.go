package prepare

import (
	"context"
	"fmt"
	"os/exec"
)

// CheckoutVCS clones vcsURL into dest (a path that must not yet exist; the
// caller chooses a persistent directory for an editable install or a
// tracked temp directory otherwise, per spec.md §4.5 step 2) and checks out
// ref if one was given. Only git
// resolves a ref in a second step, since a commit SHA cannot always be
// named directly on the clone command; the other VCS types check out their
// ref as part of the single clone/checkout invocation.
func CheckoutVCS(ctx context.Context, vcsType, vcsURL, ref, dest string) error {
	switch vcsType {
	case "git":
		return checkoutGit(ctx, vcsURL, ref, dest)
	case "hg":
		args := []string{"clone", "--quiet", vcsURL, dest}
		if ref != "" {
			args = append(args, "--updaterev", ref)
		}

		return runVCS(ctx, "hg", args...)
	case "svn":
		target := vcsURL
		if ref != "" {
			target = fmt.Sprintf("%s@%s", vcsURL, ref)
		}

		return runVCS(ctx, "svn", "checkout", "--quiet", target, dest)
	case "bzr":
		args := []string{"branch", vcsURL, dest}
		if ref != "" {
			args = append([]string{"branch", "-r", ref}, vcsURL, dest)
		}

		return runVCS(ctx, "bzr", args...)
	default:
		return fmt.Errorf("unsupported VCS type %q", vcsType)
	}
}

func checkoutGit(ctx context.Context, url, ref, dest string) error {
	if err := runVCS(ctx, "git", "clone", "--quiet", url, dest); err != nil {
		return err
	}

	if ref == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "-C", dest, "checkout", "--quiet", ref)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("checking out ref %s: %w: %s", ref, err, out)
	}

	return nil
}

func runVCS(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s %v: %w: %s", bin, args, err, out)
	}

	return nil
}
