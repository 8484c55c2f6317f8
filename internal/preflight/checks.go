package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reelsmith/internal/config"
	"reelsmith/internal/deps"
	"reelsmith/internal/publish"
	"reelsmith/internal/services"
	"reelsmith/internal/services/openai"
	"reelsmith/internal/services/pexels"
)

const networkCheckTimeout = 30 * time.Second

// CheckLLM verifies that the OpenAI API is reachable and the key is valid.
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "OpenAI"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()
	if err := openai.New(cfg, nil).HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckFootage verifies that the stock footage API accepts the key.
func CheckFootage(ctx context.Context, cfg config.Footage) Result {
	const name = "Pexels"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()
	if err := pexels.New(cfg, nil).HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckPublishAuth exchanges the refresh token for an access token.
func CheckPublishAuth(ctx context.Context, cfg config.Publish) Result {
	const name = "YouTube auth"
	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()
	if _, err := publish.NewOAuthAuthenticator(cfg, nil).Token(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "refresh token accepted"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the pipeline executes.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckMediaTools(ctx, cfg.FFmpegBinary(), cfg.FFprobeBinary())
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || services.IsTimeout(err) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrAuth) {
		return "credentials rejected: " + err.Error()
	}
	return err.Error()
}
