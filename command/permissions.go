package command

import "fmt"

// Permission is the ordered capability level a command requires.
// All < Subs < Mods < Super.
type Permission int

const (
	PermAll Permission = iota
	PermSubs
	PermMods
	PermSuper
)

// ParsePermission maps the stored string form to a level.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "all":
		return PermAll, nil
	case "subs":
		return PermSubs, nil
	case "mods":
		return PermMods, nil
	case "super":
		return PermSuper, nil
	default:
		return PermAll, fmt.Errorf("invalid permissions %q", s)
	}
}

func (p Permission) String() string {
	switch p {
	case PermAll:
		return "all"
	case PermSubs:
		return "subs"
	case PermMods:
		return "mods"
	case PermSuper:
		return "super"
	default:
		return fmt.Sprintf("Permission(%d)", int(p))
	}
}

// Allows reports whether a caller with the given channel badges may run a
// command at this level. Super is badge-independent and passes only for the
// configured super-user login.
func (p Permission) Allows(badges map[string]int, login, superUser string) bool {
	switch p {
	case PermAll:
		return true
	case PermSuper:
		return superUser != "" && login == superUser
	case PermMods:
		return hasBadge(badges, "broadcaster") || hasBadge(badges, "moderator")
	case PermSubs:
		return hasBadge(badges, "broadcaster") || hasBadge(badges, "moderator") || hasBadge(badges, "subscriber")
	default:
		return false
	}
}

func hasBadge(badges map[string]int, name string) bool {
	_, ok := badges[name]
	return ok
}
