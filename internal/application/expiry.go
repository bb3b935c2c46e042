package application

import (
	"fmt"
	"time"

	"github.com/keylens/keylens/internal/domain/model"
)

// Expiry alert boundaries, in days before expiry. A record qualifies on
// the exact 30- and 7-day marks and on every day from 3 days out through
// and beyond expiry.
const (
	noticeFirstWarningDays  = 30
	noticeSecondWarningDays = 7
	noticeFinalWindowDays   = 3
)

// Noticeworthy reports whether the record's expiry falls on an alert
// boundary at asOf. Comparison is on the UTC calendar date, so time of
// day is irrelevant. Records without an expiry never qualify.
func Noticeworthy(rec model.CredentialRecord, asOf time.Time) bool {
	if rec.ExpiresOn == nil {
		return false
	}

	expires := dateOf(*rec.ExpiresOn)
	today := dateOf(asOf)

	return expires.Equal(today.AddDate(0, 0, noticeFirstWarningDays)) ||
		expires.Equal(today.AddDate(0, 0, noticeSecondWarningDays)) ||
		!expires.After(today.AddDate(0, 0, noticeFinalWindowDays))
}

// ExpiryMessage renders the user-facing text for a record relative to
// asOf. The message is display-only and carries no identity.
func ExpiryMessage(rec model.CredentialRecord, asOf time.Time) string {
	if rec.ExpiresOn == nil {
		return fmt.Sprintf("Credential '%s' in '%s' has no expiration date.", rec.Name, rec.Container)
	}

	expires := dateOf(*rec.ExpiresOn)
	today := dateOf(asOf)
	days := int(expires.Sub(today).Hours() / 24)

	if days > 0 {
		return fmt.Sprintf("Credential '%s' in '%s' expires in %d days on %s.",
			rec.Name, rec.Container, days, expires.Format("2006-01-02"))
	}
	return fmt.Sprintf("Credential '%s' in '%s' expired %d days ago on %s.",
		rec.Name, rec.Container, -days, expires.Format("2006-01-02"))
}

// dateOf truncates an instant to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
