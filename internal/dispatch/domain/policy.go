package domain

// SelectEligible 在候选交易员中选出 ID 最小的可接单者
func SelectEligible(candidates []*Trader, busyPolicy bool) (*Trader, bool) {
	var picked *Trader
	for _, t := range candidates {
		if t == nil || !t.Eligible(busyPolicy) {
			continue
		}
		if picked == nil || t.ID < picked.ID {
			picked = t
		}
	}
	return picked, picked != nil
}
