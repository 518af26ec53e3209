package downloader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

var _ domain.ArtifactFetcher = (*Downloader)(nil)

// Argument placeholders
const (
	PlaceholderApp      = "{app}"
	PlaceholderID       = "{id}"
	PlaceholderUser     = "{user}"
	PlaceholderPassword = "{password}"
	PlaceholderDir      = "{dir}"
)

const maskedPassword = "***"

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options configures a Downloader
type Options struct {
	Command         string
	Args            []string
	AppID           int
	Accounts        []domain.Account
	Extensions      []string
	RateLimitMarker string
	Timeout         time.Duration
	// Retries is how many extra times a failed invocation is repeated with
	// the same account before the item is given up
	Retries       int
	RetryInterval time.Duration
	Runner        Runner
	// Pick chooses an index in [0, n); defaults to a uniform random pick
	Pick   func(n int) int
	Logger *utils.Logger
}

// Downloader fetches item artifacts by running an external command with
// one of the configured accounts. Accounts that hit the rate limit are
// dropped for the rest of the run.
type Downloader struct {
	opts     Options
	accounts []domain.Account
	logger   *utils.Logger
}

// New creates a Downloader. The account list is copied.
func New(opts Options) *Downloader {
	if opts.Runner == nil {
		opts.Runner = ExecRunner
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Downloader{
		opts:     opts,
		accounts: append([]domain.Account(nil), opts.Accounts...),
		logger:   logger.WithComponent("downloader"),
	}
}

// Accounts returns the accounts still usable this run
func (d *Downloader) Accounts() []domain.Account {
	return append([]domain.Account(nil), d.accounts...)
}

// Fetch downloads the artifact of id into targetDir and returns its path.
// Rate limited accounts are removed and the next one is tried. Errors wrap
// domain.ErrFetchUnavailable; with no accounts left they also wrap
// domain.ErrNoAccounts.
func (d *Downloader) Fetch(ctx context.Context, id, targetDir string) (string, error) {
	logger := d.logger.WithItem(id)

	for {
		if len(d.accounts) == 0 {
			return "", fmt.Errorf("%w: %w", domain.ErrFetchUnavailable, domain.ErrNoAccounts)
		}

		idx := d.opts.Pick(len(d.accounts))
		account := d.accounts[idx]
		res, err := d.attempt(ctx, account, id, targetDir)

		if res.RateLimited {
			d.accounts = slices.Delete(d.accounts, idx, idx+1)
			logger.Warn().Str("account", account.User).Int("remaining", len(d.accounts)).Msg("Account rate limited, dropping it")
		}

		if res.Path != "" {
			logger.Debug().Str("path", res.Path).Msg("Artifact downloaded")
			return res.Path, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if res.RateLimited {
			continue
		}

		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrFetchUnavailable, id, err)
		}
		return "", fmt.Errorf("%w: %s: no artifact in downloader output", domain.ErrFetchUnavailable, id)
	}
}

// attempt runs the command for one account, repeating failed runs up to
// Retries times. A run that produced an artifact or hit the rate limit is
// final.
func (d *Downloader) attempt(ctx context.Context, account domain.Account, id, targetDir string) (Result, error) {
	var res Result

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.opts.RetryInterval), uint64(d.opts.Retries)),
		ctx,
	)

	err := backoff.Retry(func() error {
		output, runErr := d.run(ctx, account, id, targetDir)
		res = ParseOutput(output, targetDir, d.opts.Extensions, d.opts.RateLimitMarker)
		if res.Path != "" || res.RateLimited {
			return nil
		}
		if runErr == nil {
			runErr = errors.New("no artifact in downloader output")
		}
		if ctx.Err() != nil {
			return backoff.Permanent(runErr)
		}
		d.logger.Debug().Str("item", id).Err(runErr).Msg("Downloader run failed")
		return runErr
	}, b)

	return res, err
}

func (d *Downloader) run(ctx context.Context, account domain.Account, id, targetDir string) ([]byte, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	args := d.Args(account, id, targetDir)
	d.logger.Debug().
		Str("item", id).
		Str("command", d.opts.Command+" "+strings.Join(MaskArgs(args, account.Password), " ")).
		Msg("Running downloader")

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, domain.NewIOError("mkdir", targetDir, err)
	}

	output, err := d.opts.Runner(ctx, d.opts.Command, args...)
	if err != nil && ctx.Err() != nil {
		return output, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return output, err
}

// Args expands the argument template for one invocation
func (d *Downloader) Args(account domain.Account, id, targetDir string) []string {
	r := strings.NewReplacer(
		PlaceholderApp, strconv.Itoa(d.opts.AppID),
		PlaceholderID, id,
		PlaceholderUser, account.User,
		PlaceholderPassword, account.Password,
		PlaceholderDir, targetDir,
	)

	args := make([]string, len(d.opts.Args))
	for i, arg := range d.opts.Args {
		args[i] = r.Replace(arg)
	}
	return args
}

// MaskArgs returns a copy of args with every occurrence of password hidden
func MaskArgs(args []string, password string) []string {
	masked := make([]string, len(args))
	for i, arg := range args {
		if password != "" {
			arg = strings.ReplaceAll(arg, password, maskedPassword)
		}
		masked[i] = arg
	}
	return masked
}
