package pdfsigner

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// pdfString escapes text as a PDF literal string: "(" ... ")" with
// backslash, parenthesis, and carriage-return escaping. Grounded on the
// sign/helpers.go's pdfString.
func pdfString(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ")", "\\)")
	text = strings.ReplaceAll(text, "(", "\\(")
	text = strings.ReplaceAll(text, "\r", "\\r")
	return "(" + text + ")"
}

// pdfDateTime renders a /M or /Date value in the PDF date format
// "D:YYYYMMDDHHmmSSOHH'mm'", escaped as a literal string. Grounded on the
// sign/helpers.go's pdfDateTime.
func pdfDateTime(date time.Time) string {
	_, offsetSeconds := date.Zone()
	abs := offsetSeconds
	if abs < 0 {
		abs = -abs
	}

	offsetHours := int(math.Floor(time.Duration(abs).Seconds() / 3600))
	offsetMinutes := int(math.Floor(time.Duration(abs).Seconds()/60)) - offsetHours*60

	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
	}

	dateString := "D:" + date.Format("20060102150405") + sign +
		leftPad(fmt.Sprintf("%d", offsetHours), 2) + "'" +
		leftPad(fmt.Sprintf("%d", offsetMinutes), 2) + "'"

	return pdfString(dateString)
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
