package paginator

// Plan splits a target count into full pages and one trailing remainder page
type Plan struct {
	Target    int
	PageSize  int
	FullPages int
	Remainder int
}

// NewPlan computes the plan for target results at pageSize per page
func NewPlan(target, pageSize int) Plan {
	if target < 0 {
		target = 0
	}
	if pageSize <= 0 {
		return Plan{Target: target}
	}
	return Plan{
		Target:    target,
		PageSize:  pageSize,
		FullPages: target / pageSize,
		Remainder: target % pageSize,
	}
}

// MaxRequests is the number of requests issued when no page ends the result
// set early
func (p Plan) MaxRequests() int {
	if p.Remainder > 0 {
		return p.FullPages + 1
	}
	return p.FullPages
}
