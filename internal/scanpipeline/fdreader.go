package scanpipeline

import (
	"io"

	"golang.org/x/sys/unix"
)

// fdReader streams a fanotify-opened file description without wrapping
// it in an *os.File — os.File installs a GC finalizer that closes the
// descriptor on its own schedule, which would race the event's own
// close/respond lifecycle managed by the pipeline and the read loop.
type fdReader struct {
	fd int
}

func (r fdReader) Read(p []byte) (int, error) {
	n, err := unix.Read(r.fd, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
