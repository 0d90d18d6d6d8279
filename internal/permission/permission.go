package permission

import "net/http"

type Action string

const (
	Create Action = "create"
	Read   Action = "read"
	Update Action = "update"
	Delete Action = "delete"
)

var Actions = []Action{Create, Read, Update, Delete}

type Resource string

const (
	Students    Resource = "students"
	Fees        Resource = "fees"
	Staff       Resource = "staff"
	Payroll     Resource = "payroll"
	Procurement Resource = "procurement"
	Inventory   Resource = "inventory"
	Reports     Resource = "reports"
	Settings    Resource = "settings"
)

var Resources = []Resource{Students, Fees, Staff, Payroll, Procurement, Inventory, Reports, Settings}

// Role names as stored in users.role.
const (
	RoleAdmin       = "admin"
	RoleHeadTeacher = "head_teacher"
	RoleTeacher     = "teacher"
	RoleAccountant  = "accountant"
)

var (
	crud       = []Action{Create, Read, Update, Delete}
	cru        = []Action{Create, Read, Update}
	cr         = []Action{Create, Read}
	readUpdate = []Action{Read, Update}
	readOnly   = []Action{Read}
)

// Matrix maps role -> resource -> allowed actions. It is built once and only
// read afterwards.
type Matrix struct {
	grants map[string]map[Resource]map[Action]bool
}

func newMatrix(table map[string]map[Resource][]Action) *Matrix {
	m := &Matrix{grants: make(map[string]map[Resource]map[Action]bool, len(table))}
	for role, resources := range table {
		byResource := make(map[Resource]map[Action]bool, len(resources))
		for res, actions := range resources {
			set := make(map[Action]bool, len(actions))
			for _, a := range actions {
				set[a] = true
			}
			byResource[res] = set
		}
		m.grants[role] = byResource
	}
	return m
}

// DefaultMatrix returns the school's role grants.
func DefaultMatrix() *Matrix {
	admin := make(map[Resource][]Action, len(Resources))
	for _, res := range Resources {
		admin[res] = crud
	}
	return newMatrix(map[string]map[Resource][]Action{
		RoleAdmin: admin,
		RoleHeadTeacher: {
			Students:    crud,
			Fees:        readOnly,
			Staff:       cru,
			Payroll:     readOnly,
			Procurement: cru,
			Inventory:   cru,
			Reports:     cr,
			Settings:    readOnly,
		},
		RoleTeacher: {
			Students:    readUpdate,
			Fees:        readOnly,
			Staff:       readOnly,
			Procurement: cr,
			Inventory:   readOnly,
			Reports:     readOnly,
		},
		RoleAccountant: {
			Students:    readOnly,
			Fees:        crud,
			Staff:       readOnly,
			Payroll:     crud,
			Procurement: crud,
			Inventory:   readUpdate,
			Reports:     cr,
			Settings:    readOnly,
		},
	})
}

// Can is false for any role, resource or action the matrix does not list.
func (m *Matrix) Can(role string, res Resource, action Action) bool {
	if m == nil {
		return false
	}
	return m.grants[role][res][action]
}

// Allowed returns the granted actions in create/read/update/delete order.
// The slice is fresh on every call.
func (m *Matrix) Allowed(role string, res Resource) []Action {
	out := []Action{}
	for _, a := range Actions {
		if m.Can(role, res, a) {
			out = append(out, a)
		}
	}
	return out
}

// ActionForMethod maps an HTTP method to the action it performs. Unknown
// methods map to "" which no role is granted.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return Read
	case http.MethodPost:
		return Create
	case http.MethodPut, http.MethodPatch:
		return Update
	case http.MethodDelete:
		return Delete
	default:
		return ""
	}
}
