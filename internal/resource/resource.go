package resource

import (
	"github.com/schooladmin/school-admin/internal/permission"
)

// Definition binds an API resource to the table that stores it.
type Definition struct {
	Name         permission.Resource
	Table        string
	SearchFields []string
}

// Definitions lists the table-backed resources. Reports are computed and have
// no table of their own.
func Definitions() []Definition {
	return []Definition{
		{Name: permission.Students, Table: "students", SearchFields: []string{"first_name", "last_name", "admission_number"}},
		{Name: permission.Fees, Table: "fee_payments", SearchFields: []string{"receipt_number", "student_id"}},
		{Name: permission.Staff, Table: "staff", SearchFields: []string{"first_name", "last_name", "email"}},
		{Name: permission.Payroll, Table: "payroll_runs", SearchFields: []string{"period", "staff_id"}},
		{Name: permission.Procurement, Table: "procurement_requests", SearchFields: []string{"title", "vendor"}},
		{Name: permission.Inventory, Table: "inventory_items", SearchFields: []string{"name", "sku"}},
		{Name: permission.Settings, Table: "settings", SearchFields: []string{"key"}},
	}
}
