package services

import (
	"fmt"
	"strings"
	"time"

	"law_timeline_app_go/models"
)

const icsDateFormat = "20060102T150405Z"

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// GenerateKeyDateICS renders an iCalendar invite for a key date. The UID is
// stable per key date so calendar clients update rather than duplicate.
func GenerateKeyDateICS(kd *models.KeyDate, caseNumber, organizerName, organizerEmail string, now time.Time) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//LawTimeline//KeyDate//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + kd.ID + "@lawtimeline",
		"SEQUENCE:" + fmt.Sprint(kd.Version),
		"DTSTAMP:" + now.UTC().Format(icsDateFormat),
		"DTSTART:" + kd.OccursAt.UTC().Format(icsDateFormat),
		"DTEND:" + kd.EndsAt().UTC().Format(icsDateFormat),
		"SUMMARY:" + icsEscaper.Replace(CalendarSummary(caseNumber, kd.Title)),
	}
	if kd.Description != "" {
		lines = append(lines, "DESCRIPTION:"+icsEscaper.Replace(kd.Description))
	}
	if kd.Location != "" {
		lines = append(lines, "LOCATION:"+icsEscaper.Replace(kd.Location))
	}
	if organizerEmail != "" {
		lines = append(lines, fmt.Sprintf("ORGANIZER;CN=\"%s\":mailto:%s", organizerName, organizerEmail))
	}
	for _, r := range kd.NotifyRecipients {
		attendee := "ATTENDEE"
		if r.Name != "" {
			attendee += fmt.Sprintf(";CN=\"%s\"", r.Name)
		}
		lines = append(lines, attendee+":mailto:"+r.Email)
	}
	lines = append(lines, "STATUS:CONFIRMED", "END:VEVENT", "END:VCALENDAR")

	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// CalendarSummary is the event title shown on calendars and in reminders
func CalendarSummary(caseNumber, title string) string {
	if caseNumber == "" {
		return title
	}
	return "[" + caseNumber + "] " + title
}
