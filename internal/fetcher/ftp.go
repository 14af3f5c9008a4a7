package fetcher

import (
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads files from anonymous FTP hosts. Census still
// publishes boundary bundles on ftp2.census.gov.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "fetcher: parse ftp url %s", rawURL)
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", "", eris.Errorf("fetcher: ftp url %s has no path", rawURL)
	}
	return host, u.Path, nil
}

// DownloadToFile fetches an ftp:// URL to the given local path. Returns
// bytes written.
func (f *FTPFetcher) DownloadToFile(rawURL, path string) (int64, error) {
	host, remotePath, err := parseFTPURL(rawURL)
	if err != nil {
		return 0, err
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout))
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: ftp dial %s", host)
	}
	defer func() {
		if qErr := conn.Quit(); qErr != nil {
			zap.L().Debug("fetcher: ftp quit failed", zap.Error(qErr))
		}
	}()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return 0, eris.Wrapf(err, "fetcher: ftp login %s", host)
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: ftp retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, resp)
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	return n, nil
}
