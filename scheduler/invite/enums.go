package invite

import "fmt"

// Method is the iTIP scheduling intent of an invite.
type Method int

const (
	MethodPublish Method = iota
	MethodRequest
	MethodReply
	MethodCancel
	MethodCounter
	MethodDeclineCounter
)

// String returns the iCalendar METHOD value.
func (m Method) String() string {
	switch m {
	case MethodPublish:
		return "PUBLISH"
	case MethodRequest:
		return "REQUEST"
	case MethodReply:
		return "REPLY"
	case MethodCancel:
		return "CANCEL"
	case MethodCounter:
		return "COUNTER"
	case MethodDeclineCounter:
		return "DECLINECOUNTER"
	default:
		return "PUBLISH"
	}
}

// Kind distinguishes event invites from task invites.
type Kind int

const (
	KindEvent Kind = iota
	KindTask
)

func (k Kind) String() string {
	if k == KindTask {
		return "VTODO"
	}
	return "VEVENT"
}

// Status is the iCalendar STATUS of a component.
type Status int

const (
	StatusConfirmed Status = iota
	StatusTentative
	StatusCancelled
	StatusNeedsAction
	StatusCompleted
	StatusInProgress
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusTentative:
		return "TENTATIVE"
	case StatusCancelled:
		return "CANCELLED"
	case StatusNeedsAction:
		return "NEEDS-ACTION"
	case StatusCompleted:
		return "COMPLETED"
	case StatusInProgress:
		return "IN-PROCESS"
	default:
		return "CONFIRMED"
	}
}

// ParseStatus validates a caller-supplied status value against the closed
// set.  The empty string picks the kind-appropriate default: Confirmed for
// events, NeedsAction for tasks.
func ParseStatus(value string, kind Kind) (Status, error) {
	switch value {
	case "":
		if kind == KindTask {
			return StatusNeedsAction, nil
		}
		return StatusConfirmed, nil
	case "CONFIRMED", "CONF":
		return StatusConfirmed, nil
	case "TENTATIVE", "TENT":
		return StatusTentative, nil
	case "CANCELLED", "CANC":
		return StatusCancelled, nil
	case "NEEDS-ACTION", "NEED":
		return StatusNeedsAction, nil
	case "COMPLETED", "COMP":
		return StatusCompleted, nil
	case "IN-PROCESS", "INPR":
		return StatusInProgress, nil
	default:
		return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, value)
	}
}

// Class is the iCalendar CLASS (access classification) of a component.
type Class int

const (
	ClassPublic Class = iota
	ClassPrivate
	ClassConfidential
)

func (c Class) String() string {
	switch c {
	case ClassPrivate:
		return "PRIVATE"
	case ClassConfidential:
		return "CONFIDENTIAL"
	default:
		return "PUBLIC"
	}
}

// ParseClass validates a classification value; empty means public.
func ParseClass(value string) (Class, error) {
	switch value {
	case "", "PUBLIC", "PUB":
		return ClassPublic, nil
	case "PRIVATE", "PRI":
		return ClassPrivate, nil
	case "CONFIDENTIAL", "CON":
		return ClassConfidential, nil
	default:
		return 0, fmt.Errorf("%w: unknown class %q", ErrInvalidRequest, value)
	}
}

// Transparency is the iCalendar TRANSP of an event.
type Transparency int

const (
	TranspOpaque Transparency = iota
	TranspTransparent
)

func (t Transparency) String() string {
	if t == TranspTransparent {
		return "TRANSPARENT"
	}
	return "OPAQUE"
}

// ParseTransparency validates a transparency value; empty means opaque.
func ParseTransparency(value string) (Transparency, error) {
	switch value {
	case "", "OPAQUE", "O":
		return TranspOpaque, nil
	case "TRANSPARENT", "T":
		return TranspTransparent, nil
	default:
		return 0, fmt.Errorf("%w: unknown transparency %q", ErrInvalidRequest, value)
	}
}

// FreeBusy is the intended free-busy footprint of an event.
type FreeBusy int

const (
	FreeBusyUnset FreeBusy = iota
	FreeBusyFree
	FreeBusyBusy
	FreeBusyTentative
	FreeBusyOutOfOffice
)

func (f FreeBusy) String() string {
	switch f {
	case FreeBusyFree:
		return "FREE"
	case FreeBusyBusy:
		return "BUSY"
	case FreeBusyTentative:
		return "BUSY-TENTATIVE"
	case FreeBusyOutOfOffice:
		return "BUSY-UNAVAILABLE"
	default:
		return ""
	}
}

// ParseFreeBusy validates a free-busy value; empty means unset.
func ParseFreeBusy(value string) (FreeBusy, error) {
	switch value {
	case "":
		return FreeBusyUnset, nil
	case "FREE", "F":
		return FreeBusyFree, nil
	case "BUSY", "B":
		return FreeBusyBusy, nil
	case "BUSY-TENTATIVE", "T":
		return FreeBusyTentative, nil
	case "BUSY-UNAVAILABLE", "O":
		return FreeBusyOutOfOffice, nil
	default:
		return 0, fmt.Errorf("%w: unknown free-busy %q", ErrInvalidRequest, value)
	}
}

// Role is an attendee's participation role.
type Role int

const (
	RoleRequired Role = iota
	RoleOptional
	RoleNonParticipant
	RoleChair
)

func (r Role) String() string {
	switch r {
	case RoleOptional:
		return "OPT-PARTICIPANT"
	case RoleNonParticipant:
		return "NON-PARTICIPANT"
	case RoleChair:
		return "CHAIR"
	default:
		return "REQ-PARTICIPANT"
	}
}

// PartStat is an attendee's participation status.
type PartStat int

const (
	PartStatNeedsAction PartStat = iota
	PartStatAccepted
	PartStatDeclined
	PartStatTentative
	PartStatDelegated
	PartStatCompleted
)

func (p PartStat) String() string {
	switch p {
	case PartStatAccepted:
		return "ACCEPTED"
	case PartStatDeclined:
		return "DECLINED"
	case PartStatTentative:
		return "TENTATIVE"
	case PartStatDelegated:
		return "DELEGATED"
	case PartStatCompleted:
		return "COMPLETED"
	default:
		return "NEEDS-ACTION"
	}
}

// ReplyVerb is the action an attendee takes on an invite.
type ReplyVerb int

const (
	VerbAccept ReplyVerb = iota
	VerbDecline
	VerbTentative
	VerbCounter
	VerbDeclineCounter
)

func (v ReplyVerb) String() string {
	switch v {
	case VerbAccept:
		return "ACCEPT"
	case VerbDecline:
		return "DECLINE"
	case VerbTentative:
		return "TENTATIVE"
	case VerbCounter:
		return "COUNTER"
	case VerbDeclineCounter:
		return "DECLINECOUNTER"
	default:
		return "ACCEPT"
	}
}

// PartStat maps a reply verb onto the participation status it establishes.
func (v ReplyVerb) PartStat() PartStat {
	switch v {
	case VerbDecline:
		return PartStatDeclined
	case VerbTentative:
		return PartStatTentative
	default:
		return PartStatAccepted
	}
}

// ParseReplyVerb validates a reply verb string.
func ParseReplyVerb(value string) (ReplyVerb, error) {
	switch value {
	case "ACCEPT", "accept":
		return VerbAccept, nil
	case "DECLINE", "decline":
		return VerbDecline, nil
	case "TENTATIVE", "tentative":
		return VerbTentative, nil
	case "COUNTER", "counter":
		return VerbCounter, nil
	case "DECLINECOUNTER", "declinecounter":
		return VerbDeclineCounter, nil
	default:
		return 0, fmt.Errorf("%w: unknown reply verb %q", ErrInvalidRequest, value)
	}
}
