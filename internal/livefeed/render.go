package livefeed

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/takshit12/headycoasaas/internal/model"
)

var statusBadges = map[model.Status]string{
	model.StatusPending:    "[..] pending",
	model.StatusProcessing: "[~ ] processing",
	model.StatusCompleted:  "[ok] completed",
	model.StatusError:      "[!!] error",
}

// Render produces the card view of the list as plain text. It is a pure
// function of the list state and the clock.
func Render(records []model.LabResult, now time.Time) string {
	if len(records) == 0 {
		return "No lab results uploaded yet.\nUpload a PDF to get started.\n"
	}
	var b strings.Builder
	for _, rec := range records {
		badge, ok := statusBadges[rec.Status]
		if !ok {
			badge = fmt.Sprintf("[??] %s", rec.Status)
		}
		fmt.Fprintf(&b, "%s  %s  (uploaded %s)\n", badge, rec.FileName, humanize.RelTime(rec.CreatedAt, now, "ago", "from now"))
		switch {
		case rec.Status == model.StatusCompleted && rec.Description != nil:
			fmt.Fprintf(&b, "    %s\n", *rec.Description)
		case rec.Status == model.StatusError && rec.ErrorDetails != nil:
			fmt.Fprintf(&b, "    %s\n", *rec.ErrorDetails)
		}
	}
	return b.String()
}
