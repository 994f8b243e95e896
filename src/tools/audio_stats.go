package tools

/*------------------------------------------------------------------
 *
 * Purpose:   	Periodic report of the capture stream.
 *
 *		There is no indication of the audio input level until a
 *		frame is received correctly, so while listening we log
 *		something like this every stats_seconds:
 *
 *		sample rate approx. 48.0 k, 0 errors, receive audio level 41
 *
 *		A rate far from the configured one, or a level of 0,
 *		points at the sound card rather than the modem.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"
)

type audioStats struct {
	interval       time.Duration // 0 turns reports off.
	last           time.Time
	samples        int
	errors         int
	peak           int
	suppress_first bool
}

func newAudioStats(interval time.Duration) *audioStats {
	return &audioStats{interval: interval}
}

/*------------------------------------------------------------------
 *
 * Name:        add
 *
 * Purpose:     Account for one capture and maybe produce a report.
 *
 * Inputs:	now	- Current time.
 *		buf	- Samples captured.  Empty counts as an error.
 *
 * Returns:	Report text and true when one is due.
 *
 *----------------------------------------------------------------*/

func (a *audioStats) add(now time.Time, buf []int16) (string, bool) {
	if a.interval <= 0 {
		return "", false
	}

	if a.last.IsZero() {
		// The first interval rarely starts on a clean boundary so its
		// rate is off.  Make it short and don't print it.
		a.last = now.Add(-a.interval + min(3*time.Second, a.interval))
		a.suppress_first = true
	}

	if len(buf) > 0 {
		a.samples += len(buf)
	} else {
		a.errors++
	}
	for _, s := range buf {
		a.peak = max(a.peak, abs16(s))
	}

	if now.Before(a.last.Add(a.interval)) {
		return "", false
	}

	var elapsed = now.Sub(a.last).Seconds()
	var report = fmt.Sprintf("sample rate approx. %.1f k, %d errors, receive audio level %d",
		float64(a.samples)/1000/elapsed, a.errors, a.peak*100/32768)
	var show = !a.suppress_first

	a.suppress_first = false
	a.last = now
	a.samples = 0
	a.errors = 0
	a.peak = 0

	return report, show
}

func abs16(s int16) int {
	if s < 0 {
		return -int(s)
	}
	return int(s)
}
