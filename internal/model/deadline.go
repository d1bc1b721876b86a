package model

// ColorStatus is the cached urgency tier of a deadline.
type ColorStatus string

// Urgency tiers, most to least urgent.
const (
	ColorRed    ColorStatus = "red"
	ColorYellow ColorStatus = "yellow"
	ColorGreen  ColorStatus = "green"
)

// Valid reports whether c is one of the three known tiers.
func (c ColorStatus) Valid() bool {
	switch c {
	case ColorRed, ColorYellow, ColorGreen:
		return true
	}
	return false
}

// Deadline is a single assignment due date tracked by the user.
//
// All time fields are kept as strings in the form they are persisted in so
// that malformed stored data can be carried and displayed instead of
// rejected at load time.
type Deadline struct {
	// ID is assigned by the persistence backend or a local generator and
	// never changes afterwards.
	ID string `json:"id" firestore:"-"`

	CourseName     string `json:"courseName" firestore:"courseName"`
	AssignmentName string `json:"assignmentName" firestore:"assignmentName"`

	// DueDate (YYYY-MM-DD) and DueTime (HH:MM, 24-hour) are the wall-clock
	// components the user entered. They are kept for display and editing only.
	DueDate string `json:"dueDate" firestore:"dueDate"`
	DueTime string `json:"dueTime" firestore:"dueTime"`

	// DueAt is the absolute due instant, ISO-8601 UTC with milliseconds.
	// Ordering, urgency and countdowns are all derived from it.
	DueAt string `json:"dueAt" firestore:"dueAt"`

	// ColorStatus is the urgency tier computed at the last mutation.
	ColorStatus ColorStatus `json:"colorStatus" firestore:"colorStatus"`

	CreatedAt string `json:"createdAt" firestore:"createdAt"`
	UpdatedAt string `json:"updatedAt" firestore:"updatedAt"`
}

// CreateInput carries the fields of a new deadline.
type CreateInput struct {
	CourseName     string
	AssignmentName string
	DueDate        string
	DueTime        string

	// DueAt may be left empty, in which case it is resolved from DueDate,
	// DueTime and Timezone.
	DueAt string

	// Timezone is an IANA zone name; empty means the local zone.
	Timezone string

	// ColorStatus is optional; when empty it is classified from DueAt.
	ColorStatus ColorStatus
}

// UpdateInput is a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	CourseName     *string
	AssignmentName *string
	DueDate        *string
	DueTime        *string
	DueAt          *string

	// Timezone is used only when DueAt has to be re-resolved because
	// DueDate or DueTime changed without an explicit DueAt.
	Timezone string
}

// Apply merges the non-nil fields of in onto a copy of d.
func (in UpdateInput) Apply(d Deadline) Deadline {
	if in.CourseName != nil {
		d.CourseName = *in.CourseName
	}
	if in.AssignmentName != nil {
		d.AssignmentName = *in.AssignmentName
	}
	if in.DueDate != nil {
		d.DueDate = *in.DueDate
	}
	if in.DueTime != nil {
		d.DueTime = *in.DueTime
	}
	if in.DueAt != nil {
		d.DueAt = *in.DueAt
	}
	return d
}

// ReschedulesWithoutInstant reports whether the edit moves the wall-clock
// due date or time but leaves DueAt for the caller to derive.
func (in UpdateInput) ReschedulesWithoutInstant() bool {
	return in.DueAt == nil && (in.DueDate != nil || in.DueTime != nil)
}

// Patch is a resolved edit as written to a backend. Nil fields are left
// unchanged; ColorStatus and UpdatedAt are always written.
type Patch struct {
	CourseName     *string
	AssignmentName *string
	DueDate        *string
	DueTime        *string
	DueAt          *string
	ColorStatus    ColorStatus
	UpdatedAt      string
}

// Apply merges p onto a copy of d.
func (p Patch) Apply(d Deadline) Deadline {
	d = UpdateInput{
		CourseName:     p.CourseName,
		AssignmentName: p.AssignmentName,
		DueDate:        p.DueDate,
		DueTime:        p.DueTime,
		DueAt:          p.DueAt,
	}.Apply(d)
	d.ColorStatus = p.ColorStatus
	d.UpdatedAt = p.UpdatedAt
	return d
}
