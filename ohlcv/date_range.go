package ohlcv

import "time"

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the calendar day of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return d.Compare(Day(r.From)) >= 0 && d.Compare(Day(r.To)) <= 0
}

// Split cuts the range into consecutive chunks of at most days calendar days, for providers that limit
// how much history one request may cover.
func (r DateRange) Split(days int) []DateRange {
	if r.From.After(r.To) || days <= 0 {
		return nil
	}

	var chunks []DateRange
	for cur := r.From; !cur.After(r.To); cur = cur.AddDate(0, 0, days) {
		end := cur.AddDate(0, 0, days-1)
		if end.After(r.To) {
			end = r.To
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
	}
	return chunks
}
