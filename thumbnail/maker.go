// Package thumbnail derives cached JPEG thumbnails for enumerated images by
// delegating to an external image-processing tool, one child process per
// image, rate-limited so a large directory does not fork a converter storm.
package thumbnail

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Width and Height are the fixed PIMA 15740 thumbnail dimensions this
// responder advertises in every ImageObject's thumbnail fields.
const (
	Width  = 160
	Height = 120
)

// Maker produces a thumbnail for an image file at srcPath, writing it to
// dstPath. It is the abstract collaborator the object table's enumeration
// step depends on; Subprocess, the default, shells out to ImageMagick's
// convert.
type Maker interface {
	Make(ctx context.Context, srcPath, dstPath string) error
}

// Subprocess is the default Maker. It invokes an external "convert"-style
// binary and waits for it to exit, rate-limited via a token bucket so
// enumeration of a large directory does not spawn unbounded children at
// once.
type Subprocess struct {
	// Binary is the converter executable name or path. Defaults to
	// "convert" (ImageMagick) when empty.
	Binary string

	limiter *rate.Limiter
}

// NewSubprocess returns a Subprocess maker whose token bucket lets up to
// burst conversions start back to back and then refills at ratePerSec
// tokens per second. It paces conversion starts; it does not bound how
// many conversions run at once.
func NewSubprocess(binary string, ratePerSec, burst float64) *Subprocess {
	if binary == "" {
		binary = "convert"
	}
	return &Subprocess{
		Binary:  binary,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(burst)),
	}
}

// Make waits for a limiter token, then runs "<binary> -thumbnail
// <Width>x<Height> srcPath dstPath" and waits for it to exit. A non-zero
// exit status is reported as an error; the caller is expected to skip
// enumerating the source image on failure rather than treat it as fatal.
func (s *Subprocess) Make(ctx context.Context, srcPath, dstPath string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "thumbnail rate limiter")
	}
	size := sizeSpec()
	cmd := exec.CommandContext(ctx, s.Binary, "-thumbnail", size, srcPath, dstPath)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "run %s -thumbnail %s %s %s", s.Binary, size, srcPath, dstPath)
	}
	return nil
}

func sizeSpec() string {
	return fmt.Sprintf("%dx%d", Width, Height)
}
