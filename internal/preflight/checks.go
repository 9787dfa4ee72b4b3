package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the free space below which the library check warns.
const minFreeBytes = 1 << 30

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

// CheckSameDevice reports whether from and to live on one filesystem. Moves
// across filesystems fall back to copy and delete, which is not atomic, so a
// mismatch is advisory rather than fatal.
func CheckSameDevice(name, from, to string) Result {
	var a, b unix.Stat_t
	if err := unix.Stat(from, &a); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("stat %s: %v", from, err)}
	}
	if err := unix.Stat(to, &b); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("stat %s: %v", to, err)}
	}
	if a.Dev != b.Dev {
		return Result{
			Name:     name,
			Optional: true,
			Detail:   fmt.Sprintf("%s and %s are on different filesystems; moves will copy then delete", from, to),
		}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "same filesystem (atomic rename)"}
}

// CheckFreeSpace warns when the filesystem holding path is nearly full.
func CheckFreeSpace(name, path string) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%.1f GiB free", float64(free)/float64(1<<30))
	if free < minFreeBytes {
		return Result{Name: name, Optional: true, Detail: detail + " (below 1 GiB)"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: detail}
}

// CheckCatalog verifies that the catalog endpoint answers HTTP at all.
// Credentials are checked later by the daemon's login.
func CheckCatalog(ctx context.Context, baseURL string) Result {
	const name = "Catalog"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("catalog answered %d", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reachability check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "reachability check timed out"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
