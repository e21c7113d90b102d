// Package builder produces the service's container image: it stages a build
// context with the vendored third-party library and the requirements file,
// renders the Dockerfile, and drives the Docker engine's image build.
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// Adapter implements ports.BuilderService using the Docker SDK and go-git.
type Adapter struct {
	cli *client.Client
	out io.Writer
}

// Option configures a builder Adapter.
type Option func(*Adapter)

// WithOutput redirects build and clone progress, which otherwise goes to
// stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Adapter) { a.out = w }
}

// NewAdapter creates a builder backed by the local Docker engine.
func NewAdapter(opts ...Option) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	a := &Adapter{cli: cli, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// BuildImage stages a build context for the spec, builds the image, and
// returns the tag it was addressed under. Any failure (missing requirements
// file, clone failure, failed build step) aborts the build.
func (a *Adapter) BuildImage(ctx context.Context, spec domain.ImageSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	ctxDir, err := os.MkdirTemp("", "bitboard-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create build context dir: %w", err)
	}
	defer os.RemoveAll(ctxDir)

	if err := a.stageContext(ctx, spec, ctxDir); err != nil {
		return "", err
	}

	tar, err := archive.TarWithOptions(ctxDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}

	fmt.Fprintf(a.out, "Building image %s...\n", spec.Tag)
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{spec.Tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// The engine streams build progress as JSON messages; an error inside
	// the stream means a failed build step even though the request itself
	// succeeded.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, a.out, 0, false, nil); err != nil {
		return "", fmt.Errorf("image build failed: %w", err)
	}

	return spec.Tag, nil
}

// stageContext assembles the build context: requirements file, vendored
// library, rendered Dockerfile.
func (a *Adapter) stageContext(ctx context.Context, spec domain.ImageSpec, dir string) error {
	if err := copyRequirements(spec.Requirements, filepath.Join(dir, "requirements.txt")); err != nil {
		return err
	}
	if err := a.vendorLibrary(ctx, spec.Library, filepath.Join(dir, libraryDir)); err != nil {
		return err
	}
	dockerfile, err := renderDockerfile(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return fmt.Errorf("write dockerfile: %w", err)
	}
	return nil
}

func copyRequirements(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("requirements file %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("stage requirements file: %w", err)
	}
	return nil
}

// vendorLibrary clones the third-party library into the build context. With
// no revision pinned it takes a shallow clone of the default branch head,
// matching how the image was historically built; with a revision it does a
// full clone and checks the revision out, so rebuilding unchanged inputs
// yields the same library.
func (a *Adapter) vendorLibrary(ctx context.Context, lib domain.LibrarySpec, dir string) error {
	fmt.Fprintf(a.out, "Cloning %s...\n", lib.URL)

	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOptions(lib, a.out))
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", lib.URL, err)
	}
	if err := checkoutRevision(repo, lib.Revision); err != nil {
		return err
	}
	return stripRepoMetadata(dir)
}

// cloneOptions picks between a shallow clone of the default branch head and
// a full clone that a pinned revision can be resolved against.
func cloneOptions(lib domain.LibrarySpec, progress io.Writer) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:      lib.URL,
		Progress: progress,
	}
	if lib.Revision == "" {
		opts.Depth = 1 // Shallow clone for speed
	}
	return opts
}

// checkoutRevision pins the worktree to a commit, tag, or branch. An empty
// revision keeps the clone's default branch head.
func checkoutRevision(repo *git.Repository, revision string) error {
	if revision == "" {
		return nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return fmt.Errorf("resolve revision %q: %w", revision, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}
	return nil
}

// stripRepoMetadata drops the .git directory from a vendored clone; the
// repository history has no place in the image.
func stripRepoMetadata(dir string) error {
	return os.RemoveAll(filepath.Join(dir, ".git"))
}
