package scheduling

// transition is one allowed edge of the booking lifecycle together with the
// roles that may drive it.
type transition struct {
	from  BookingStatus
	to    BookingStatus
	roles []Role
}

var transitions = []transition{
	{from: StatusPending, to: StatusConfirmed, roles: []Role{RoleVet}},
	{from: StatusPending, to: StatusCancelled, roles: []Role{RoleOwner, RoleVet}},
	{from: StatusConfirmed, to: StatusCompleted, roles: []Role{RoleVet}},
	{from: StatusConfirmed, to: StatusNoShow, roles: []Role{RoleVet}},
	{from: StatusConfirmed, to: StatusCancelled, roles: []Role{RoleVet}},
}

// CheckTransition validates moving a booking from -> to on behalf of role.
// An edge missing from the table is a StateTransitionError regardless of role;
// a known edge the role may not drive is a PermissionError.
func CheckTransition(role Role, from, to BookingStatus) error {
	for _, t := range transitions {
		if t.from != from || t.to != to {
			continue
		}
		for _, r := range t.roles {
			if r == role {
				return nil
			}
		}
		return &PermissionError{Message: string(role) + " may not move a booking from " + string(from) + " to " + string(to)}
	}
	return &StateTransitionError{From: from, To: to}
}

// NextStatuses lists the statuses reachable from from by role.
func NextStatuses(role Role, from BookingStatus) []BookingStatus {
	var next []BookingStatus
	for _, t := range transitions {
		if t.from != from {
			continue
		}
		for _, r := range t.roles {
			if r == role {
				next = append(next, t.to)
				break
			}
		}
	}
	return next
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	for _, t := range transitions {
		if t.from == s {
			return false
		}
	}
	return true
}
