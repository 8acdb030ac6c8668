package domain

// Activity is one offering in the catalog together with its current roster.
type Activity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	Participants    []string
}

// clone returns a copy whose Participants slice is not shared with a.
func (a Activity) clone() Activity {
	out := a
	out.Participants = append(make([]string, 0, len(a.Participants)), a.Participants...)
	return out
}

func (a Activity) indexOf(email string) int {
	for i, p := range a.Participants {
		if p == email {
			return i
		}
	}
	return -1
}

// HasParticipant reports whether email is on the roster.
func (a Activity) HasParticipant(email string) bool {
	return a.indexOf(email) >= 0
}

// Full reports whether the roster has reached MaxParticipants.
func (a Activity) Full() bool {
	return len(a.Participants) >= a.MaxParticipants
}
