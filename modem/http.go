package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"i4.energy/across/sim800gw/at"
)

const (
	httpTermPause     = 100 * time.Millisecond
	httpActionTimeout = 60 * time.Second
	httpUploadTimeout = 5 * time.Second
	httpPollTimeout   = 5 * time.Second
	httpReadTimeout   = 5 * time.Second

	// httpDataTimeout is the upload window, in milliseconds, declared to
	// the modem with AT+HTTPDATA.
	httpDataTimeout = 120000
)

// httpPrologue terminates any previous HTTP session and prepares a new one
// for url.
func (m *Modem) httpPrologue(ctx context.Context, url string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := checkArgument("url", url); err != nil {
		return stepError(CodeURL, "url", err)
	}
	if err := m.ExecOK(ctx, at.CmdHTTPTerm, 0); err != nil {
		m.logger.Debug("terminate http session", "err", err)
	}
	if err := m.clock.Sleep(ctx, httpTermPause); err != nil {
		return err
	}

	steps := []struct {
		cmd  string
		code int
		name string
	}{
		{at.CmdHTTPInit, CodeInit, "init"},
		{at.CmdHTTPCID, CodeBearer, "bearer"},
		{at.CmdHTTPUA, CodeUserAgent, "user agent"},
		{at.CmdHTTPRedirect, CodeRedirect, "redirect"},
		{fmt.Sprintf(at.CmdHTTPURL, url), CodeURL, "url"},
	}
	for _, s := range steps {
		if err := m.ExecOK(ctx, s.cmd, 0); err != nil {
			return stepError(s.code, s.name, err)
		}
	}
	return nil
}

// HTTPGet requests url and returns the HTTP status and the body length
// reported by the modem. The body stays on the modem; fetch it with HTTPRead.
func (m *Modem) HTTPGet(ctx context.Context, url string) (status, length int, err error) {
	if err := m.httpPrologue(ctx, url); err != nil {
		return 0, 0, err
	}
	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdHTTPAction, at.MethodGet), 0); err != nil {
		return 0, 0, stepError(CodeAction, "action", err)
	}
	fields, err := m.Scan(ctx, at.PatHTTPGet, httpActionTimeout)
	if err != nil {
		return 0, 0, stepError(CodeActionResult, "action result", err)
	}
	status, length = fields.Int(0), fields.Int(1)
	m.logger.Info("http get", "url", url, "status", status, "length", length)
	return status, length, nil
}

// HTTPGetTo requests url and copies the body to w in chunks of the
// configured chunk size. It returns the HTTP status and the number of body
// bytes written.
func (m *Modem) HTTPGetTo(ctx context.Context, url string, w io.Writer) (status int, written int64, err error) {
	status, length, err := m.HTTPGet(ctx, url)
	if err != nil {
		m.metrics.RecordTransfer("http_get", 0, err)
		return 0, 0, err
	}
	written, err = m.CopyBody(ctx, w, int64(length))
	return status, written, err
}

// CopyBody copies length bytes of the response body held by the modem to w,
// starting at offset 0. It is used after HTTPGet when the caller needs the
// status before the body.
func (m *Modem) CopyBody(ctx context.Context, w io.Writer, length int64) (int64, error) {
	written, err := m.copyBody(ctx, w, length)
	m.metrics.RecordTransfer("http_get", written, err)
	return written, err
}

// copyBody reads length body bytes chunk by chunk into w.
func (m *Modem) copyBody(ctx context.Context, w io.Writer, length int64) (int64, error) {
	buf := make([]byte, m.config.ChunkSize)
	var offset int64
	stalled := 0
	for offset < length {
		size := min(int64(len(buf)), length-offset)
		n, rerr := m.HTTPRead(ctx, buf[:size], offset)
		if rerr != nil {
			if err := ctx.Err(); err != nil {
				return offset, err
			}
			m.logger.Debug("http read", "offset", offset, "err", rerr)
		}
		if n == 0 {
			stalled++
			if stalled >= m.config.MaxStalledReads {
				return offset, fmt.Errorf("%w at offset %d of %d", ErrTransferStalled, offset, length)
			}
			continue
		}
		stalled = 0
		if _, err := w.Write(buf[:n]); err != nil {
			return offset, fmt.Errorf("write body: %w", err)
		}
		offset += int64(n)
	}
	return offset, nil
}

// HTTPRead reads up to len(p) body bytes starting at offset from the last
// HTTP response held by the modem. A chunk not followed by OK counts as
// zero bytes read.
func (m *Modem) HTTPRead(ctx context.Context, p []byte, offset int64) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	fields, err := m.Query(ctx, fmt.Sprintf(at.CmdHTTPRead, offset, len(p)), at.PatHTTPRead, 0)
	if err != nil {
		return 0, err
	}
	available := fields.Int(0)
	if available < 0 || available > len(p) {
		return 0, fmt.Errorf("modem offered %d bytes for a %d byte chunk", available, len(p))
	}

	n, err := m.readRaw(ctx, p[:available], httpReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("read chunk at %d: %w", offset, err)
	}
	if err := m.Expect(ctx, at.OK, 0); err != nil {
		return 0, fmt.Errorf("chunk at %d: %w", offset, err)
	}
	return n, nil
}

// HTTPPost triggers a POST of whatever data the modem holds to url and
// returns the HTTP status and response length.
func (m *Modem) HTTPPost(ctx context.Context, url string) (status, length int, err error) {
	if err := m.httpPrologue(ctx, url); err != nil {
		return 0, 0, err
	}
	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdHTTPAction, at.MethodPost), 0); err != nil {
		return 0, 0, stepError(CodePostAction, "post action", err)
	}
	fields, err := m.Scan(ctx, at.PatHTTPPost, httpActionTimeout)
	if err != nil {
		return 0, 0, stepError(CodeActionResult, "action result", err)
	}
	status, length = fields.Int(0), fields.Int(1)
	m.logger.Info("http post", "url", url, "status", status, "length", length)
	return status, length, nil
}

// HTTPPostFrom uploads up to size bytes from r to url. A reader that ends
// early shortens the upload; the request is still sent.
func (m *Modem) HTTPPostFrom(ctx context.Context, url string, r io.Reader, size int64) (status, length int, err error) {
	sent, status, length, err := m.httpPostFrom(ctx, url, r, size)
	m.metrics.RecordTransfer("http_post", sent, err)
	return status, length, err
}

func (m *Modem) httpPostFrom(ctx context.Context, url string, r io.Reader, size int64) (sent int64, status, length int, err error) {
	if err := m.httpPrologue(ctx, url); err != nil {
		return 0, 0, 0, err
	}
	if err := m.Exec(ctx, fmt.Sprintf(at.CmdHTTPData, size, httpDataTimeout), at.Download, 0); err != nil {
		return 0, 0, 0, stepError(CodeDownload, "download", err)
	}

	buf := make([]byte, m.config.ChunkSize)
	for sent < size {
		n, rerr := io.ReadFull(r, buf[:min(int64(len(buf)), size-sent)])
		if n > 0 {
			if err := m.writeRaw(buf[:n]); err != nil {
				return sent, 0, 0, stepError(CodeUpload, "upload", err)
			}
			sent += int64(n)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			m.logger.Debug("upload source exhausted", "sent", sent, "size", size)
			break
		}
		if rerr != nil {
			return sent, 0, 0, stepError(CodeUpload, "upload", fmt.Errorf("read source: %w", rerr))
		}
	}

	if err := m.Expect(ctx, at.OK, httpUploadTimeout); err != nil {
		return sent, 0, 0, stepError(CodeUpload, "upload", err)
	}
	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdHTTPAction, at.MethodPost), 0); err != nil {
		return sent, 0, 0, stepError(CodeAction, "action", err)
	}

	var last error
	for range m.config.MaxActionPolls {
		fields, err := m.Scan(ctx, at.PatHTTPPost, httpPollTimeout)
		if err == nil {
			status, length = fields.Int(0), fields.Int(1)
			m.logger.Info("http post", "url", url, "sent", sent, "status", status, "length", length)
			return sent, status, length, nil
		}
		if ctx.Err() != nil {
			return sent, 0, 0, ctx.Err()
		}
		last = err
	}
	return sent, 0, 0, stepError(CodeActionResult, "action result", last)
}
