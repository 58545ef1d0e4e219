// README: Human-facing order number formatting (ORD{YY}{MM}{DD}-{NNN}).
package order

import (
	"fmt"
	"time"
)

// FormatNumber renders the day's nth order number. Sequencing itself lives
// in the order_counters table so concurrent creators never collide.
func FormatNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD%s-%03d", day.Format("060102"), seq)
}
