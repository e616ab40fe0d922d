package nfs

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/cartomix/prolink/internal/status"
)

// RetryPolicy bounds how many times, and with what backoff, idempotent NFS
// operations (lookup, read) and the mount call are retried after a
// transient failure (spec.md §4.6). The portmap GETPORT lookups are sent
// once and are not retried; writes are out of scope entirely (Non-goal).
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Jitter    time.Duration
	Timeout   time.Duration // per-attempt RPC deadline
}

// DefaultRetryPolicy mirrors the conservative defaults a DJ booth network
// needs: a handful of quick retries, never long enough to stall a set.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
		Jitter:    100 * time.Millisecond,
		Timeout:   2 * time.Second,
	}
}

func (p RetryPolicy) do(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay
			if p.Jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(p.Jitter)))
			}
			time.Sleep(delay)
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("nfs: exhausted %d attempts: %w", p.Attempts, lastErr)
}

// Progress reports bytes transferred so far against the known total size of
// the file being fetched (spec.md §4.6).
type Progress struct {
	Read  uint32
	Total uint32
}

// cacheKey identifies a mounted export on a given host.
type cacheKey struct {
	host string
	path string
}

// Client caches NFS connections and mount root handles per host/export so
// repeated FetchFile calls against the same device and slot skip the
// portmap/mount dance (spec.md §4.6).
type Client struct {
	Retry RetryPolicy

	mu         sync.Mutex
	mountConns map[string]net.Conn
	nfsConns   map[string]net.Conn
	roots      map[cacheKey]FileHandle
	nextXID    uint32
}

// NewClient returns a Client with the default retry policy.
func NewClient() *Client {
	return &Client{
		Retry:      DefaultRetryPolicy(),
		mountConns: make(map[string]net.Conn),
		nfsConns:   make(map[string]net.Conn),
		roots:      make(map[cacheKey]FileHandle),
		nextXID:    1,
	}
}

// Close tears down every cached connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.mountConns {
		conn.Close()
	}
	for _, conn := range c.nfsConns {
		conn.Close()
	}
	c.mountConns = make(map[string]net.Conn)
	c.nfsConns = make(map[string]net.Conn)
	c.roots = make(map[cacheKey]FileHandle)
}

func (c *Client) xid() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextXID++
	return c.nextXID
}

func (c *Client) mountConn(host net.IP) (net.Conn, error) {
	c.mu.Lock()
	conn, ok := c.mountConns[host.String()]
	c.mu.Unlock()
	if ok {
		return conn, nil
	}

	port, err := GetPort(host, programMount, versionMount, c.Retry.Timeout)
	if err != nil {
		return nil, fmt.Errorf("nfs: resolve mount port: %w", err)
	}
	conn, err = net.DialUDP("udp4", nil, &net.UDPAddr{IP: host, Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("nfs: dial mount service: %w", err)
	}

	c.mu.Lock()
	c.mountConns[host.String()] = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *Client) nfsConn(host net.IP) (net.Conn, error) {
	c.mu.Lock()
	conn, ok := c.nfsConns[host.String()]
	c.mu.Unlock()
	if ok {
		return conn, nil
	}

	port, err := GetPort(host, programNFS, versionNFS, c.Retry.Timeout)
	if err != nil {
		return nil, fmt.Errorf("nfs: resolve nfs port: %w", err)
	}
	conn, err = net.DialUDP("udp4", nil, &net.UDPAddr{IP: host, Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("nfs: dial nfs service: %w", err)
	}

	c.mu.Lock()
	c.nfsConns[host.String()] = conn
	c.mu.Unlock()
	return conn, nil
}

// root returns the cached root handle for host/path, mounting it if this is
// the first request against that export.
func (c *Client) root(host net.IP, path string) (FileHandle, error) {
	key := cacheKey{host: host.String(), path: path}
	c.mu.Lock()
	fh, ok := c.roots[key]
	c.mu.Unlock()
	if ok {
		return fh, nil
	}

	conn, err := c.mountConn(host)
	if err != nil {
		return FileHandle{}, err
	}

	var resolved FileHandle
	err = c.Retry.do(func() error {
		fh, err := Mount(conn, c.xid(), path, c.Retry.Timeout)
		if err != nil {
			return err
		}
		resolved = fh
		return nil
	})
	if err != nil {
		return FileHandle{}, err
	}

	c.mu.Lock()
	c.roots[key] = resolved
	c.mu.Unlock()
	return resolved, nil
}

// resolvePath walks path component by component from root, returning the
// file handle of the final component.
func (c *Client) resolvePath(host net.IP, root FileHandle, path string) (FileHandle, error) {
	conn, err := c.nfsConn(host)
	if err != nil {
		return FileHandle{}, err
	}

	current := root
	for _, component := range splitPath(path) {
		component := component
		var next FileHandle
		err := c.Retry.do(func() error {
			fh, err := Lookup(conn, c.xid(), current, component, c.Retry.Timeout)
			if err != nil {
				return err
			}
			next = fh
			return nil
		})
		if err != nil {
			return FileHandle{}, fmt.Errorf("nfs: resolve %q: %w", path, err)
		}
		current = next
	}
	return current, nil
}

// FetchFile mounts slot's export on host (caching the mount), resolves path
// within it, and reads the whole file in readChunk-sized pieces, invoking
// onProgress after every successful read (spec.md §4.6).
func (c *Client) FetchFile(host net.IP, slot status.SlotTag, path string, onProgress func(Progress)) ([]byte, error) {
	export, err := SlotExportPath(slot)
	if err != nil {
		return nil, err
	}

	// Transient NFS failure: evict the cached root handle once and retry
	// the whole chain before surfacing a hard error (spec.md §7).
	out, err := c.fetchFileOnce(host, export, path, onProgress)
	if err == nil {
		return out, nil
	}

	c.evictRoot(host, export)
	out, err2 := c.fetchFileOnce(host, export, path, onProgress)
	if err2 != nil {
		return nil, fmt.Errorf("nfs: fetch %s failed after root eviction retry: %w", path, err2)
	}
	return out, nil
}

func (c *Client) evictRoot(host net.IP, export string) {
	c.mu.Lock()
	delete(c.roots, cacheKey{host: host.String(), path: export})
	c.mu.Unlock()
}

func (c *Client) fetchFileOnce(host net.IP, export, path string, onProgress func(Progress)) ([]byte, error) {
	root, err := c.root(host, export)
	if err != nil {
		return nil, fmt.Errorf("nfs: mount %s on %s: %w", export, host, err)
	}

	fh, err := c.resolvePath(host, root, path)
	if err != nil {
		return nil, err
	}

	conn, err := c.nfsConn(host)
	if err != nil {
		return nil, err
	}

	var out []byte
	offset := uint32(0)
	for {
		var chunk []byte
		var total uint32
		err := c.Retry.do(func() error {
			data, size, err := Read(conn, c.xid(), fh, offset, c.Retry.Timeout)
			if err != nil {
				return err
			}
			chunk, total = data, size
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("nfs: read %s at offset %d: %w", path, offset, err)
		}

		out = append(out, chunk...)
		offset += uint32(len(chunk))
		if onProgress != nil {
			onProgress(Progress{Read: offset, Total: total})
		}
		if len(chunk) == 0 || offset >= total {
			break
		}
	}
	return out, nil
}
