package download

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ThrottledWriter limits the rate at which bytes reach the underlying writer.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter wraps w so at most bytesPerSecond bytes are written per
// second. If bytesPerSecond <= 0 it returns w unchanged.
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSecond int) io.Writer {
	if bytesPerSecond <= 0 {
		return w
	}
	// One token per byte; the bucket holds one second's worth.
	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
		ctx:     ctx,
	}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		// WaitN rejects requests larger than the burst.
		n := min(len(p), t.limiter.Burst())
		if err := t.limiter.WaitN(t.ctx, n); err != nil {
			return written, err
		}
		m, err := t.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

// throttledWriterAt is the io.WriterAt counterpart used for S3 downloads,
// whose parts arrive concurrently and out of order.
type throttledWriterAt struct {
	w       io.WriterAt
	limiter *rate.Limiter
	ctx     context.Context
}

func newThrottledWriterAt(ctx context.Context, w io.WriterAt, bytesPerSecond int) io.WriterAt {
	if bytesPerSecond <= 0 {
		return w
	}
	return &throttledWriterAt{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
		ctx:     ctx,
	}
}

func (t *throttledWriterAt) WriteAt(p []byte, off int64) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), t.limiter.Burst())
		if err := t.limiter.WaitN(t.ctx, n); err != nil {
			return written, err
		}
		m, err := t.w.WriteAt(p[:n], off)
		written += m
		if err != nil {
			return written, err
		}
		p, off = p[n:], off+int64(n)
	}
	return written, nil
}
