// SPDX-License-Identifier: MIT

package epg

import (
	"encoding/json"
	"fmt"
	"time"
)

// FillerTitle is the reserved title of synthetic no-data blocks.
const FillerTitle = "No Data Available"

// Block is one entry of a completed daily timeline. It is implemented by
// ProgramBlock and FillerBlock only.
type Block interface {
	Interval() (start, end time.Time)
	View() BlockView
	block()
}

// BlockView is the serialized shape shared by all blocks.
type BlockView struct {
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Length          string   `json:"length"`
	Channel         string   `json:"channel"`
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
	Description     string   `json:"description"`
	Categories      []string `json:"categories"`
	Episode         string   `json:"episode"`
	OriginalAirDate string   `json:"original_air_date"`
	Rating          string   `json:"rating"`
}

// ProgramBlock is a programme projected into a timezone. Start and End
// always fall within the same local calendar day.
type ProgramBlock struct {
	Channel         string
	Start           time.Time
	End             time.Time
	Title           string
	Subtitle        string
	Description     string
	Categories      []string
	Episode         string
	OriginalAirDate string
	Rating          string
}

func (ProgramBlock) block() {}

// Interval returns the local bounds of the block.
func (b ProgramBlock) Interval() (time.Time, time.Time) { return b.Start, b.End }

// View returns the serialized form with absent fields set to NotAvailable.
func (b ProgramBlock) View() BlockView {
	categories := make([]string, 0, len(b.Categories))
	categories = append(categories, b.Categories...)
	v := baseView(b.Channel, b.Start, b.End)
	v.Title = orNA(b.Title)
	v.Subtitle = orNA(b.Subtitle)
	v.Description = orNA(b.Description)
	v.Categories = categories
	v.Episode = orNA(b.Episode)
	v.OriginalAirDate = orNA(b.OriginalAirDate)
	v.Rating = orNA(b.Rating)
	return v
}

// MarshalJSON encodes the block as its View.
func (b ProgramBlock) MarshalJSON() ([]byte, error) { return json.Marshal(b.View()) }

// FillerBlock marks an interval without guide data.
type FillerBlock struct {
	Channel string
	Start   time.Time
	End     time.Time
}

func (FillerBlock) block() {}

// Interval returns the local bounds of the block.
func (b FillerBlock) Interval() (time.Time, time.Time) { return b.Start, b.End }

// View returns the serialized form of the filler.
func (b FillerBlock) View() BlockView {
	v := baseView(b.Channel, b.Start, b.End)
	v.Title = FillerTitle
	v.Subtitle = NotAvailable
	v.Description = NotAvailable
	v.Categories = []string{NotAvailable}
	v.Episode = NotAvailable
	v.OriginalAirDate = NotAvailable
	v.Rating = NotAvailable
	return v
}

// MarshalJSON encodes the block as its View.
func (b FillerBlock) MarshalJSON() ([]byte, error) { return json.Marshal(b.View()) }

// IsFiller reports whether b is a synthetic no-data block.
func IsFiller(b Block) bool {
	_, ok := b.(FillerBlock)
	return ok
}

// Timestamp layouts of BlockView. Microseconds are printed, six digits,
// only when non-zero, so a split block ends at 23:59:59.999999.
const (
	viewTimestamp      = "2006-01-02T15:04:05Z07:00"
	viewTimestampMicro = "2006-01-02T15:04:05.000000Z07:00"
	viewClock          = "15:04:05"
	viewClockMicro     = "15:04:05.000000"
)

func formatView(t time.Time, whole, micro string) string {
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(micro)
	}
	return t.Format(whole)
}

func baseView(channel string, start, end time.Time) BlockView {
	return BlockView{
		StartTime: formatView(start, viewTimestamp, viewTimestampMicro),
		EndTime:   formatView(end, viewTimestamp, viewTimestampMicro),
		Start:     formatView(start, viewClock, viewClockMicro),
		End:       formatView(end, viewClock, viewClockMicro),
		Length:    FormatLength(end.Sub(start)),
		Channel:   channel,
	}
}

// FormatLength renders d as H:MM:SS with optional microseconds and a
// leading day count, e.g. "1:30:00", "0:59:59.999999", "1 day, 2:00:00".
func FormatLength(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	us := d / time.Microsecond

	out := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	if us > 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	switch {
	case days == 1:
		out = "1 day, " + out
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, out)
	}
	return out
}
