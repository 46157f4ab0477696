package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"rostersync/internal/services"
)

// Pinger is satisfied by the ILSWS client's About call.
type Pinger interface {
	About(ctx context.Context) error
}

// CheckUpstream verifies the system-of-record answers. It uses a 10-second
// timeout and a single attempt.
func CheckUpstream(ctx context.Context, upstream Pinger) Result {
	const name = "System of record"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := upstream.About(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeUpstreamError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
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

func summarizeUpstreamError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (upstream unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (upstream unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "rejected credentials: " + err.Error()
	}
	return err.Error()
}
