package organizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

const tmpSuffix = ".tmp"

// copyFile copies src to dst through a temp file in dst's directory, then
// renames it into place. Mode and modification time follow the source.
func (o *Organizer) copyFile(src, dst string) (err error) {
	in, err := o.fs.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	dir := filepath.Dir(dst)
	if err := o.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", internal.ErrIO, dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(dst)+"."+uuid.NewString()+tmpSuffix)
	out, err := o.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}
	defer func() {
		if err != nil {
			_ = o.fs.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: copying %s: %w", internal.ErrIO, src, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	if err = o.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	mtime := info.ModTime()
	if cerr := o.fs.Chtimes(dst, mtime, mtime); cerr != nil {
		logger.Get().Warn().Err(cerr).Msgf("cannot set modification time on %s", dst)
	}
	return nil
}
