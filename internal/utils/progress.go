package utils

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Standard progress bar descriptions
const (
	DescListing = "Listing"
	DescSyncing = "Syncing"
)

// NewProgressBar creates a consistently styled progress bar writing to
// stderr. A negative total renders a spinner.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return NewProgressBarTo(nil, total, description)
}

// NewProgressBarTo is NewProgressBar with an explicit writer. A nil writer
// keeps the library default (stderr).
func NewProgressBarTo(w io.Writer, total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	}
	if w != nil {
		opts = append(opts, progressbar.OptionSetWriter(w))
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts, progressbar.OptionShowIts())
	}

	return progressbar.NewOptions(total, opts...)
}
