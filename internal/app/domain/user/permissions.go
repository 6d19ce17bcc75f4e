package user

// Operation names an authorizable action. Authorization is a single lookup
// in the permission table rather than per-handler role string checks.
type Operation string

const (
	OpCreateOrder     Operation = "order.create"
	OpListOrders      Operation = "order.list"
	OpGetOrder        Operation = "order.get"
	OpUpdateOrder     Operation = "order.update"
	OpCancelLastOrder Operation = "order.cancel_last"
	OpMarkServed      Operation = "order.mark_served"
	OpMarkDone        Operation = "order.mark_done"
	OpCheckout        Operation = "order.checkout"
	OpDeleteOrder     Operation = "order.delete"
	OpListActive      Operation = "order.list_active"
	OpListGrill       Operation = "order.list_grill"
	OpListKitchen     Operation = "order.list_kitchen"
	OpListCashier     Operation = "order.list_cashier"
	OpClearGrill      Operation = "order.clear_grill"
	OpClearKitchen    Operation = "order.clear_kitchen"

	OpManageMenu  Operation = "menu.manage"
	OpReadMenu    Operation = "menu.read"
	OpManageUsers Operation = "user.manage"
)

// permissions is the closed {operation × role} allow table. An operation
// absent from the table denies every role.
var permissions = map[Operation][]Role{
	OpCreateOrder:     {RoleServer},
	OpListOrders:      {RoleOwner, RoleServer, RoleCashier, RoleGrillCook, RoleKitchenStaff},
	OpGetOrder:        {RoleOwner, RoleServer, RoleCashier, RoleGrillCook, RoleKitchenStaff},
	OpUpdateOrder:     {RoleServer},
	OpCancelLastOrder: {RoleServer},
	OpMarkServed:      {RoleServer},
	OpMarkDone:        {RoleServer},
	OpCheckout:        {RoleCashier, RoleOwner},
	OpDeleteOrder:     {RoleServer},
	OpListActive:      {RoleServer},
	OpListGrill:       {RoleGrillCook, RoleOwner},
	OpListKitchen:     {RoleKitchenStaff, RoleOwner},
	OpListCashier:     {RoleCashier, RoleOwner},
	OpClearGrill:      {RoleGrillCook, RoleOwner},
	OpClearKitchen:    {RoleKitchenStaff, RoleOwner},

	OpManageMenu:  {RoleOwner},
	OpReadMenu:    {RoleOwner, RoleServer, RoleCashier, RoleGrillCook, RoleKitchenStaff},
	OpManageUsers: {RoleOwner},
}

// Allowed reports whether role may perform op.
func Allowed(role Role, op Operation) bool {
	for _, allowed := range permissions[op] {
		if role == allowed {
			return true
		}
	}
	return false
}
