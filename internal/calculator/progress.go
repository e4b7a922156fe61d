package calculator

// ShareStatus is the minimal participant state needed for progress math.
type ShareStatus struct {
	Amount float64
	Paid   bool
}

// Progress summarizes how far a split has been paid.
type Progress struct {
	PaidCount         int
	ParticipantCount  int
	AmountPaid        float64
	AmountOutstanding float64
	// Percent of participants who have paid, 0-100.
	Percent float64
}

// CalculateProgress aggregates paid counts and amounts.
// Percent is by head count, matching what the split card shows.
func CalculateProgress(shares []ShareStatus) Progress {
	p := Progress{ParticipantCount: len(shares)}
	for _, s := range shares {
		if s.Paid {
			p.PaidCount++
			p.AmountPaid += s.Amount
		} else {
			p.AmountOutstanding += s.Amount
		}
	}
	if p.ParticipantCount > 0 {
		p.Percent = float64(p.PaidCount) / float64(p.ParticipantCount) * 100
	}
	return p
}

// Complete reports whether every participant has paid.
func (p Progress) Complete() bool {
	return p.ParticipantCount > 0 && p.PaidCount == p.ParticipantCount
}
