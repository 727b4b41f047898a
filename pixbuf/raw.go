package pixbuf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/image/tiff"
)

// RawDecoder turns a camera raw file into pixels.  Failures are returned as
// *DecodeError naming the stage.
type RawDecoder interface {
	Decode(path string) (image.Image, error)
}

// Dcraw decodes raw files with the dcraw tool
type Dcraw struct {
	// Path of the dcraw binary, dcraw from PATH if empty
	Path string

	// Timeout bounds one conversion, one minute if zero
	Timeout time.Duration
}

func (d *Dcraw) bin() string {
	if d.Path == "" {
		return "dcraw"
	}
	return d.Path
}

// Decode identifies path, converts it to a 16 bit TIFF with the camera white
// balance and decodes the TIFF
func (d *Dcraw) Decode(path string) (image.Image, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	lg := logger()
	lg.Debug().Str("path", path).Msg("open raw")
	if out, err := exec.CommandContext(ctx, d.bin(), "-i", path).CombinedOutput(); err != nil {
		return nil, &DecodeError{Stage: StageOpen, Path: path, Err: toolError(err, out)}
	}

	lg = logger()
	lg.Debug().Str("path", path).Msg("unpack raw")
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.bin(), "-c", "-w", "-T", path)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Start(); err != nil {
		return nil, &DecodeError{Stage: StageUnpack, Path: path, Err: err}
	}

	lg = logger()
	lg.Debug().Str("path", path).Msg("process raw")
	if err := cmd.Wait(); err != nil {
		return nil, &DecodeError{Stage: StageProcess, Path: path, Err: toolError(err, stderr.Bytes())}
	}

	lg = logger()
	lg.Debug().Str("path", path).Int("bytes", stdout.Len()).Msg("materialize raw")
	img, err := tiff.Decode(&stdout)
	if err != nil {
		return nil, &DecodeError{Stage: StageMaterialize, Path: path, Err: err}
	}
	return img, nil
}

// toolError adds the tool's own message to a failed run
func toolError(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}
