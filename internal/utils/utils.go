package utils

import (
	"log"
	"math/big"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var motesPerCSPR = big.NewInt(1_000_000_000)

// ConvertMotesToCSPR converts motes to whole CSPR (integer division by 10^9).
func ConvertMotesToCSPR(motes *big.Int) *big.Int {
	return new(big.Int).Quo(motes, motesPerCSPR)
}

var enPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCSPR renders a CSPR amount with thousands separators, e.g. "12,500".
func FormatCSPR(cspr *big.Int) string {
	if cspr.IsInt64() {
		return enPrinter.Sprintf("%d", cspr.Int64())
	}
	// Beyond int64 the printer can't group digits for us; insert separators by hand.
	s := cspr.String()
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func PrintNextExecution(c *cron.Cron) {
	entries := c.Entries()
	if len(entries) > 0 {
		nextRun := entries[0].Next
		log.Printf("Next backfill execution scheduled for: %v", nextRun)
	}
}
