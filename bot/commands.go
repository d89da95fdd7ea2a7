package bot

import (
	"fmt"
	"strconv"
	"strings"

	"context"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

// handleCommand processes exact command strings. Returns false when the
// text is not a recognized command, letting it fall through the rest of
// the routing chain (chat relay in particular).
func (r *Router) handleCommand(ctx context.Context, upd Update, sess *models.Session, role roles.Role) bool {
	fields := strings.Fields(upd.Text)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "/start":
		r.cmdStart(ctx, upd, sess, role)
		return true
	case "/help":
		if role.Kind != roles.KindNone {
			r.sendText(upd.UserID, staffHelp)
		} else {
			r.sendText(upd.UserID, customerHelp)
		}
		return true
	case "/addadmin":
		r.requireAdmin(ctx, upd, role, func() {
			r.cmdAddStaff(ctx, upd, fields[1:], models.RoleAdmin)
		})
		return true
	case "/addcare":
		r.requireAdmin(ctx, upd, role, func() {
			r.cmdAddStaff(ctx, upd, fields[1:], models.RoleCustomerCare)
		})
		return true
	case "/removestaff":
		r.requireAdmin(ctx, upd, role, func() {
			r.cmdRemoveStaff(ctx, upd, fields[1:])
		})
		return true
	case "/done":
		// only meaningful while parked in a chat relay step
		if sess.Step == models.StepChattingWithUser || sess.Step == models.StepChatWithSupport {
			r.cmdStart(ctx, upd, sess, role)
			return true
		}
		return false
	default:
		return false
	}
}

// cmdStart is the universal recovery path: whatever step the session was
// parked at, /start forces it back to the deterministic root for the
// caller's role.
func (r *Router) cmdStart(ctx context.Context, upd Update, sess *models.Session, role roles.Role) {
	r.upsertUser(ctx, upd)
	sess.ClearDraft()
	sess.ClearFocus()

	if role.Kind != roles.KindNone {
		r.showAdminPanel(ctx, upd, sess, role)
		return
	}
	r.showMainMenu(ctx, upd, sess)
}

func (r *Router) cmdAddStaff(ctx context.Context, upd Update, args []string, staffRole models.StaffRole) {
	usage := "/addadmin <id> <name>"
	if staffRole == models.RoleCustomerCare {
		usage = "/addcare <id> <name>"
	}
	if len(args) < 2 {
		r.sendText(upd.UserID, "Usage: "+usage)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.sendText(upd.UserID, "The id must be a numeric Telegram id.\nUsage: "+usage)
		return
	}
	name := strings.Join(args[1:], " ")
	persona := roles.PickPersona(roles.PersonaPool, r.rng)

	rec := &models.StaffRecord{
		ID:          id,
		Name:        name,
		DisplayName: persona,
		Role:        staffRole,
		AddedBy:     upd.UserID,
	}
	if err := r.store.UpsertStaff(ctx, rec); err != nil {
		r.sendText(upd.UserID, "Could not save the staff record, try again.")
		return
	}

	kind := "Admin"
	if staffRole == models.RoleCustomerCare {
		kind = "Customer-care agent"
	}
	r.sendText(upd.UserID, fmt.Sprintf(
		"✅ %s %s (%d) registered. Customers will see them as %q.", kind, name, id, persona))
}

func (r *Router) cmdRemoveStaff(ctx context.Context, upd Update, args []string) {
	if len(args) != 1 {
		r.sendText(upd.UserID, "Usage: /removestaff <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.sendText(upd.UserID, "The id must be a numeric Telegram id.")
		return
	}
	if r.roles.IsSuperAdmin(id) {
		r.sendText(upd.UserID, "⛔️ Super admins cannot be removed.")
		return
	}
	if err := r.store.DeleteStaff(ctx, id); err != nil {
		if errors.Is(err, db.ErrStaffNotFound) {
			r.sendText(upd.UserID, "No staff member with that id.")
			return
		}
		r.sendText(upd.UserID, "Could not remove the staff record, try again.")
		return
	}
	r.sendText(upd.UserID, fmt.Sprintf("✅ Staff member %d removed.", id))
}
