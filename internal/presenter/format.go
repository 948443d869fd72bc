// README: Presenter formats a decoded duration for people: summary line, caption and feature echo.
package presenter

import (
	"fmt"

	"taxieta/internal/modules/duration"
)

// Summary renders "X minutes, Y seconds".
func Summary(r duration.Result) string {
	return fmt.Sprintf("%d minutes, %d seconds", r.Minutes, r.Seconds)
}

// Caption renders the total rounded to whole seconds, "(= N seconds)".
func Caption(r duration.Result) string {
	return fmt.Sprintf("(= %d seconds)", r.RoundedSeconds())
}
