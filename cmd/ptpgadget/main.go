// Command ptpgadget serves a directory of JPEG/TIFF images as a PTP
// (PIMA 15740) still-image capture device over a USB gadget interface.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/ptpgadget/gadget"
	"github.com/nasa-jpl/ptpgadget/objectstore"
	"github.com/nasa-jpl/ptpgadget/ptpproto"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
	"github.com/nasa-jpl/ptpgadget/thumbnail"
)

const (
	gadgetDir     = "/dev/gadget"
	thumbCacheDir = "/var/cache/ptp/thumb"

	manufacturer = "NASA JPL"
	model        = "PTPGadget"
	configName   = "PTP"
	ifaceName    = "Still Image Capture"

	// thumbnailConcurrency/thumbnailRatePerSec are the burst size and
	// refill rate of the token bucket that paces thumbnail-maker
	// subprocess starts during enumeration.
	thumbnailConcurrency = 4
	thumbnailRatePerSec  = 8
)

// CLI is the command-line surface: `-v` (repeatable, raises log
// verbosity) and a single positional image root directory.
type CLI struct {
	Verbose []bool `short:"v" help:"increase logging verbosity"`
	Root    string `arg:"" help:"image root directory" type:"existingdir"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("ptpgadget"),
		kong.Description("PTP (PIMA 15740) USB-gadget responder"),
		kong.UsageOnError(),
	)

	logger := log.New(os.Stderr)
	logger.SetLevel(log.InfoLevel)
	if len(cli.Verbose) > 0 {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(cli, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cli CLI, logger *log.Logger) error {
	if err := os.MkdirAll(thumbCacheDir, 0o755); err != nil {
		return errors.Wrap(err, "create thumbnail cache directory")
	}

	maker := thumbnail.NewSubprocess("", thumbnailRatePerSec, thumbnailConcurrency)
	table := objectstore.New(cli.Root, thumbCacheDir, maker, logger)

	verbose := len(cli.Verbose) > 0 && isatty.IsTerminal(os.Stderr.Fd())
	if err := enumerateWithProgress(context.Background(), table, logger, verbose); err != nil {
		return errors.Wrap(err, "enumerate root directory")
	}
	logger.Infof("enumerated %d objects from %s", table.ObjectNumber(), cli.Root)

	storage := objectstore.NewStorageDescriptor()
	if err := storage.Refresh(cli.Root); err != nil {
		logger.Warnf("refresh storage info: %v", err)
	}

	session := &ptpproto.Session{}
	device := ptpproto.DeviceInfo{Manufacturer: manufacturer, Model: model}
	dispatcher := ptpproto.NewDispatcher(table, &storage, ptpwire.Latin1Encoder{}, session, device, logger)

	transport := gadget.NewFileTransport(gadgetDir)
	strs := gadget.NewStrings()
	devDesc, cfgFullSpeed, cfgHighSpeed := gadget.StandardDescriptors(strs, manufacturer, model, configName, ifaceName)
	if err := transport.Open(devDesc, cfgFullSpeed, cfgHighSpeed, strs); err != nil {
		return errors.Wrap(err, "open gadget transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Errorf("close gadget transport: %v", err)
		}
	}()

	reset := gadget.NewResetCoordinator()
	worker := gadget.NewBulkWorker(transport, reset, dispatcher, logger)
	control := gadget.NewControlHandler(transport, reset, worker, strs, logger)

	logger.Info("listening for USB gadget events")
	return control.Run(context.Background())
}

// enumerateWithProgress enumerates table, driving an animated spinner
// over stderr when verbose and attached to a terminal; otherwise it
// enumerates silently. The spinner is purely observational and never
// changes enumeration semantics.
func enumerateWithProgress(ctx context.Context, table *objectstore.ObjectTable, logger *log.Logger, verbose bool) error {
	if !verbose {
		return table.Enumerate(ctx)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " enumerating image directory",
		SuffixAutoColon: true,
		StopMessage:     "enumeration complete",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		logger.Warnf("start progress spinner: %v", err)
		return table.Enumerate(ctx)
	}
	if err := spinner.Start(); err != nil {
		logger.Warnf("start progress spinner: %v", err)
		return table.Enumerate(ctx)
	}
	defer spinner.Stop()

	table.ProgressSink = func(p objectstore.EnumerationProgress) {
		spinner.Message(fmt.Sprintf("%d/%d %s", p.Done, p.Total, p.Current))
	}
	return table.Enumerate(ctx)
}
