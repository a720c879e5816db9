// SPDX-License-Identifier: MIT

// Package threat detects new and escalated Sentry objects between fetches.
package threat

import (
	"fmt"
	"strings"

	"github.com/asentry/asentry/internal/sentry"
)

// Update is an object that is new or whose threat level increased.
type Update struct {
	Object sentry.Object `json:"object"`
	IsNew  bool          `json:"isNew"`
}

// Compare reports, in latest order, every object of latest that is absent
// from saved or whose threat increased. An object counts as increased when
// its cumulative Palermo value rose, its Torino value went from null to a
// value, or its Torino value rose. Unparseable numbers never count as an
// increase. Objects that vanished or decreased produce nothing.
func Compare(saved, latest []sentry.Object) []Update {
	byID := make(map[string]sentry.Object, len(saved))
	for _, o := range saved {
		if _, dup := byID[o.ID]; !dup {
			byID[o.ID] = o
		}
	}

	var updates []Update
	for _, obj := range latest {
		old, seen := byID[obj.ID]
		switch {
		case !seen:
			updates = append(updates, Update{Object: obj, IsNew: true})
		case increased(old, obj):
			updates = append(updates, Update{Object: obj})
		}
	}
	return updates
}

func increased(old, cur sentry.Object) bool {
	if c, ok := cur.PalermoCumulative(); ok {
		if o, ok := old.PalermoCumulative(); ok && c > o {
			return true
		}
	}
	if cur.TSMax == nil {
		return false
	}
	if old.TSMax == nil {
		return true
	}
	c, okC := cur.TorinoMax()
	o, okO := old.TorinoMax()
	return okC && okO && c > o
}

// Counts splits updates into new and increased totals.
func Counts(updates []Update) (newCount, increasedCount int) {
	for _, u := range updates {
		if u.IsNew {
			newCount++
		} else {
			increasedCount++
		}
	}
	return newCount, increasedCount
}

// Headline is the first line of the alert block.
func (u Update) Headline() string {
	if u.IsNew {
		return "NEW THREAT!"
	}
	return "INCREASED THREAT!"
}

// Lines renders the four-line alert block for the update.
func (u Update) Lines() []string {
	return []string{
		u.Headline(),
		u.Object.FullName,
		fmt.Sprintf("Year: %s", u.Object.Range),
		fmt.Sprintf("Threat level: %s", u.Object.TorinoMaxString()),
	}
}

// Text joins the alert blocks of all updates, separated by blank lines.
func Text(updates []Update) string {
	blocks := make([]string, 0, len(updates))
	for _, u := range updates {
		blocks = append(blocks, strings.Join(u.Lines(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
