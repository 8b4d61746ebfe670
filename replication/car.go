package replication

import (
	"context"
	"io"

	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car/v2"
	glog "github.com/goliatone/go-logger/glog"

	"golang.org/x/sync/errgroup"

	"github.com/glyphgrid/sphere/block"
)

// archiveChunkDepth bounds how many encoded CARv1 frames may queue up
// before a slow reader backpressures the writer (spec.md §4.H).
const archiveChunkDepth = 16

// ArchiveChunk is one encoded fragment of a CARv1 archive, or a terminal
// error (only ever set on the final chunk).
type ArchiveChunk struct {
	Bytes []byte
	Err   error
}

// ArchiveStream wraps BlockStream's output into a single-root CARv1
// archive, the wire form peer-to-peer replication exchanges (spec.md
// §4.H "Archive"). memoVersion is the archive's sole root.
func ArchiveStream(ctx context.Context, store block.Store, memoVersion cid.Cid, logger glog.Logger) <-chan ArchiveChunk {
	out := make(chan ArchiveChunk, archiveChunkDepth)
	go func() {
		defer close(out)

		pr, pw := io.Pipe()
		group, gctx := errgroup.WithContext(ctx)

		group.Go(func() error {
			defer pw.Close()
			writer, err := car.NewWriter(pw, []cid.Cid{memoVersion})
			if err != nil {
				return err
			}
			for item := range BlockStream(gctx, store, memoVersion, logger) {
				if item.Err != nil {
					return item.Err
				}
				if err := writer.Write(item.Addr, item.Bytes); err != nil {
					return err
				}
			}
			return nil
		})

		readErr := make(chan error, 1)
		go func() {
			buf := make([]byte, 32*1024)
			for {
				n, err := pr.Read(buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					select {
					case out <- ArchiveChunk{Bytes: chunk}:
					case <-ctx.Done():
						readErr <- ctx.Err()
						return
					}
				}
				if err != nil {
					if err == io.EOF {
						readErr <- nil
					} else {
						readErr <- err
					}
					return
				}
			}
		}()

		writeErr := group.Wait()
		pr.Close()
		finalErr := <-readErr
		if writeErr != nil {
			finalErr = writeErr
		}
		if finalErr != nil {
			select {
			case out <- ArchiveChunk{Err: finalErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}
