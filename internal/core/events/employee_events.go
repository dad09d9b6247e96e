package events

const (
	EmployeeCreatedEventType         = "employee.created"
	EmployeeUpdatedEventType         = "employee.updated"
	EmployeeOnboardedEventType       = "employee.onboarded"
	EmployeePasswordSecuredEventType = "employee.password_secured"
	EmployeeDeletedEventType         = "employee.deleted"
	AdminLoggedInEventType           = "admin.logged_in"
	AdminLoggedOutEventType          = "admin.logged_out"
)

type EmployeeEvent struct {
	BaseEvent
	EmployeeID string `json:"employee_id"`
}

func newEmployeeEvent(eventType, employeeID string, data map[string]interface{}) *EmployeeEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["employee_id"] = employeeID
	return &EmployeeEvent{
		BaseEvent:  NewBaseEvent(eventType, data),
		EmployeeID: employeeID,
	}
}

func NewEmployeeCreatedEvent(employeeID, firstName, lastName string) *EmployeeEvent {
	return newEmployeeEvent(EmployeeCreatedEventType, employeeID, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	})
}

func NewEmployeeUpdatedEvent(employeeID string) *EmployeeEvent {
	return newEmployeeEvent(EmployeeUpdatedEventType, employeeID, nil)
}

// NewEmployeeOnboardedEvent never carries the temporary password.
func NewEmployeeOnboardedEvent(employeeID, handle, workEmail string, personalEmail *string) *EmployeeEvent {
	data := map[string]interface{}{
		"handle":     handle,
		"work_email": workEmail,
	}
	if personalEmail != nil {
		data["personal_email"] = *personalEmail
	}
	return newEmployeeEvent(EmployeeOnboardedEventType, employeeID, data)
}

func NewEmployeePasswordSecuredEvent(employeeID string) *EmployeeEvent {
	return newEmployeeEvent(EmployeePasswordSecuredEventType, employeeID, nil)
}

func NewEmployeeDeletedEvent(employeeID string) *EmployeeEvent {
	return newEmployeeEvent(EmployeeDeletedEventType, employeeID, nil)
}

type AdminEvent struct {
	BaseEvent
	AdminID string `json:"admin_id"`
}

func NewAdminLoggedInEvent(adminID string) *AdminEvent {
	return &AdminEvent{
		BaseEvent: NewBaseEvent(AdminLoggedInEventType, map[string]interface{}{"admin_id": adminID}),
		AdminID:   adminID,
	}
}

func NewAdminLoggedOutEvent(adminID string) *AdminEvent {
	return &AdminEvent{
		BaseEvent: NewBaseEvent(AdminLoggedOutEventType, map[string]interface{}{"admin_id": adminID}),
		AdminID:   adminID,
	}
}
