package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/gftdcojp/tng-client/pkg/tng"
)

const spinner pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{speed . }}`

// barProgress renders transfers as terminal progress bars.
type barProgress struct {
	a *app
}

func (a *app) progress() tng.Progress {
	if a.quiet {
		return tng.NopProgress{}
	}
	return barProgress{a: a}
}

func (p barProgress) Start(label string, total int64) tng.ProgressTask {
	var bar *pb.ProgressBar
	if total < 0 {
		bar = spinner.New(-1)
	} else {
		bar = pb.New64(total)
	}
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", label+":")
	bar.SetWriter(p.a.stderr)
	bar.Start()
	return barTask{bar}
}

type barTask struct {
	bar *pb.ProgressBar
}

func (t barTask) Add(n int64) { t.bar.Add64(n) }
func (t barTask) Finish()     { t.bar.Finish() }

// rowProgress counts rows rather than bytes.
func (a *app) rowProgress(label string, total int64) tng.ProgressTask {
	if a.quiet {
		return tng.NopProgress{}.Start(label, total)
	}
	bar := pb.New64(total)
	bar.Set("prefix", label+":")
	bar.SetWriter(a.stderr)
	bar.Start()
	return barTask{bar}
}
